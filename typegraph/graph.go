// Package typegraph provides an in-memory implementation of the type graph
// the adapter registry is resolved against: type registration, subtyping,
// canonical names, and schema families.
package typegraph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/scenewire/imaging-host-sdk/registry/values"
)

// Graph implements ports.TypeGraph and ports.TypeRegistrar using in-memory
// storage. Registration is guarded by a mutex; reads take the shared lock
// and return copies, so a finished graph can be queried concurrently.
type Graph struct {
	mu         sync.RWMutex
	registered map[values.TypeRef]bool
	bases      map[values.TypeRef][]values.TypeRef
	subtypes   map[values.TypeRef][]values.TypeRef
	names      map[values.TypeRef]values.TypeName
	types      map[values.TypeName]values.TypeRef
	families   map[values.TypeName][]values.SchemaInfo
}

// NewGraph creates an empty type graph.
func NewGraph() *Graph {
	return &Graph{
		registered: make(map[values.TypeRef]bool),
		bases:      make(map[values.TypeRef][]values.TypeRef),
		subtypes:   make(map[values.TypeRef][]values.TypeRef),
		names:      make(map[values.TypeRef]values.TypeName),
		types:      make(map[values.TypeName]values.TypeRef),
		families:   make(map[values.TypeName][]values.SchemaInfo),
	}
}

var (
	defaultOnce  sync.Once
	defaultGraph *Graph
)

// Default returns the process-wide graph that built-in adapters and
// embedders register into.
func Default() *Graph {
	defaultOnce.Do(func() {
		defaultGraph = NewGraph()
	})
	return defaultGraph
}

// RegisterType records t and its direct base types. Bases unknown to the
// graph are registered implicitly so plugins can derive from capability
// types declared elsewhere. Re-registering a type is an error.
func (g *Graph) RegisterType(t values.TypeRef, bases ...values.TypeRef) error {
	if !t.IsValid() {
		return fmt.Errorf("invalid type ref")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.registered[t] {
		return fmt.Errorf("type already registered: %s", t)
	}
	g.registered[t] = true
	for _, b := range bases {
		g.bases[t] = append(g.bases[t], b)
		g.subtypes[b] = append(g.subtypes[b], t)
	}
	return nil
}

// SetCanonicalName binds a canonical schema type name to t. A name can be
// bound to only one type.
func (g *Graph) SetCanonicalName(t values.TypeRef, name values.TypeName) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.types[name]; ok && existing != t {
		return fmt.Errorf("canonical name %q already bound to %s", name, existing)
	}
	g.names[t] = name
	g.types[name] = t
	return nil
}

// RegisterSchemaVariant adds one versioned variant to a schema family.
// Variants are deduplicated by identifier.
func (g *Graph) RegisterSchemaVariant(family values.TypeName, info values.SchemaInfo) error {
	if family.IsEmpty() || info.Identifier.IsEmpty() {
		return fmt.Errorf("schema family and variant identifier are required")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, v := range g.families[family] {
		if v.Identifier == info.Identifier {
			return fmt.Errorf("variant %q already registered in family %q", info.Identifier, family)
		}
	}
	g.families[family] = append(g.families[family], info)
	return nil
}

// AllTypesImplementing returns every type transitively deriving from base,
// sorted by type ref. The sort makes registry builds reproducible across
// runs regardless of registration order.
func (g *Graph) AllTypesImplementing(base values.TypeRef) []values.TypeRef {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := map[values.TypeRef]bool{base: true}
	var out []values.TypeRef

	stack := append([]values.TypeRef(nil), g.subtypes[base]...)
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		stack = append(stack, g.subtypes[t]...)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DirectSubtypes returns the immediate subtypes of t in registration order.
func (g *Graph) DirectSubtypes(t values.TypeRef) []values.TypeRef {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]values.TypeRef(nil), g.subtypes[t]...)
}

// SchemaVariantsInFamily returns the variants of a schema family in
// registration order, or nil for an unknown family.
func (g *Graph) SchemaVariantsInFamily(family values.TypeName) []values.SchemaInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]values.SchemaInfo(nil), g.families[family]...)
}

// CanonicalNameOf resolves a type to its canonical schema type name, or the
// empty name when the type has no schema identity.
func (g *Graph) CanonicalNameOf(t values.TypeRef) values.TypeName {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.names[t]
}

// TypeFromCanonicalName resolves a canonical name back to its type.
func (g *Graph) TypeFromCanonicalName(name values.TypeName) (values.TypeRef, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	t, ok := g.types[name]
	return t, ok
}
