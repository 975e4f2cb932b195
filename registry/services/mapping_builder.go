// Package services contains the domain services behind the adapter registry.
package services

import (
	"log/slog"
	"sort"

	"github.com/scenewire/imaging-host-sdk/registry/ports"
	"github.com/scenewire/imaging-host-sdk/registry/values"
)

// NameField selects which metadata field carries an adapter's target name.
type NameField int

const (
	// PrimTypeNameField reads the "primTypeName" key (prim adapters).
	PrimTypeNameField NameField = iota
	// APISchemaNameField reads the "apiSchemaName" key (API schema adapters).
	APISchemaNameField
)

// FamilyOptions configure one build run of the mapping builder.
type FamilyOptions struct {
	// Base is the capability type candidates must implement.
	Base values.TypeRef

	// Name is the metadata field holding the canonical type name.
	Name NameField

	// AllowKeyless routes adapters declaring an empty name into the keyless
	// list instead of reporting them as misdeclared.
	AllowKeyless bool
}

func (o FamilyOptions) nameField(md values.AdapterMetadata) (values.StringField, string) {
	if o.Name == APISchemaNameField {
		return md.APISchemaName, values.MetaAPISchemaName
	}
	return md.PrimTypeName, values.MetaPrimTypeName
}

// Result is the finalized mapping for one adapter family.
type Result struct {
	// TypeMap maps canonical type names to the adapter type serving them.
	TypeMap map[values.TypeName]values.TypeRef

	// Keys is a sorted snapshot of TypeMap's keys.
	Keys []values.TypeName

	// Keyless lists adapter types that declared no name. They are
	// constructed as a batch, never looked up.
	Keyless []values.TypeRef
}

// MappingBuilder resolves raw per-type adapter metadata into a flat,
// conflict-free type map. The same builder runs once per adapter family.
//
// The build is best-effort: every failure either skips the offending
// candidate or is reported and overridden, and the result always contains
// whatever subset of adapters resolved cleanly.
type MappingBuilder struct {
	graph           ports.TypeGraph
	provider        ports.MetadataProvider
	externalEnabled bool
	logger          *slog.Logger
}

// NewMappingBuilder creates a builder over the given collaborators.
// externalEnabled mirrors the process-wide "external plugins enabled" flag:
// when false, only adapters whose metadata declares isInternal=true survive
// discovery.
func NewMappingBuilder(
	graph ports.TypeGraph,
	provider ports.MetadataProvider,
	externalEnabled bool,
	logger *slog.Logger,
) *MappingBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &MappingBuilder{
		graph:           graph,
		provider:        provider,
		externalEnabled: externalEnabled,
		logger:          logger,
	}
}

type familyEntry struct {
	name           values.TypeName
	includeDerived bool
}

// Build runs the three mapping passes for one adapter family: direct
// mapping, schema family propagation, derived type propagation. Pass order
// matters: family resolution needs the adapter already chosen for the
// family's representative, and derived roots must include names added via
// family inclusion.
func (b *MappingBuilder) Build(opts FamilyOptions) Result {
	tm := make(map[values.TypeName]values.TypeRef)

	var (
		keyless      []values.TypeRef
		derivedRoots []values.TypeName
		families     []familyEntry
	)

	// Pass 1: direct mapping, in the graph's enumeration order.
	for _, t := range b.graph.AllTypesImplementing(opts.Base) {
		if _, ok := b.provider.ResolveBackingImplementation(t); !ok {
			b.logger.Debug("no backing plugin for adapter type", "type", t)
			continue
		}

		md, ok := b.provider.MetadataFor(t)
		if !ok {
			b.logger.Debug("no metadata for adapter type", "type", t)
			continue
		}

		enabled, valid := b.isEnabled(t, md)
		if !valid {
			continue
		}
		if !enabled {
			b.logger.Debug("adapter disabled, external plugins are off", "type", t)
			continue
		}

		field, key := opts.nameField(md)
		if !field.Present {
			b.logger.Error("adapter metadata missing required key", "type", t, "key", key)
			continue
		}
		if !field.Valid {
			b.logger.Error("adapter metadata key does not hold a string", "type", t, "key", key)
			continue
		}

		name := values.TypeName(field.Value)
		if name.IsEmpty() {
			if opts.AllowKeyless {
				keyless = append(keyless, t)
			} else {
				b.logger.Error("adapter declares an empty type name", "type", t, "key", key)
			}
			continue
		}

		if prev, exists := tm[name]; exists {
			b.logger.Warn("conflicting adapters for type name, last discovered wins",
				"name", name, "discarded", prev, "using", t)
		}
		tm[name] = t

		// A malformed opt-in flag abandons the rest of this candidate's
		// processing, but the mapping above stands.
		includeDerived := false
		if f := md.IncludeDerivedPrimTypes; f.Present {
			if !f.Valid {
				b.logger.Error("includeDerivedPrimTypes metadata does not hold a bool", "type", t)
				continue
			}
			if f.Value {
				derivedRoots = append(derivedRoots, name)
				includeDerived = true
			}
		}

		if f := md.IncludeSchemaFamily; f.Present {
			if !f.Valid {
				b.logger.Error("includeSchemaFamily metadata does not hold a bool", "type", t)
				continue
			}
			if f.Value {
				families = append(families, familyEntry{name: name, includeDerived: includeDerived})
			}
		}
	}

	// Pass 2: schema family propagation. Family inclusion never overrides a
	// variant's own explicit mapping.
	for _, fam := range families {
		adapterType, ok := tm[fam.name]
		if !ok {
			continue
		}
		for _, variant := range b.graph.SchemaVariantsInFamily(fam.name) {
			if _, exists := tm[variant.Identifier]; exists {
				continue
			}
			tm[variant.Identifier] = adapterType
			b.logger.Debug("mapped adapter for schema family variant",
				"family", fam.name, "variant", variant.Identifier)
			if fam.includeDerived {
				derivedRoots = append(derivedRoots, variant.CanonicalName)
			}
		}
	}

	// Pass 3: derived type propagation.
	b.propagateDerived(tm, derivedRoots)

	keys := make([]values.TypeName, 0, len(tm))
	for name := range tm {
		keys = append(keys, name)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	return Result{TypeMap: tm, Keys: keys, Keyless: keyless}
}

// isEnabled implements the external-plugin gate. When external plugins are
// globally enabled every adapter passes; otherwise only adapters explicitly
// marked internal do. A malformed isInternal value invalidates the
// candidate.
func (b *MappingBuilder) isEnabled(t values.TypeRef, md values.AdapterMetadata) (enabled, valid bool) {
	if b.externalEnabled {
		return true, true
	}
	f := md.IsInternal
	if !f.Present {
		return false, true
	}
	if !f.Valid {
		b.logger.Error("isInternal metadata does not hold a bool", "type", t)
		return false, false
	}
	return f.Value, true
}

// propagateDerived walks the subtype graph below each root and assigns the
// root's adapter to every subtype that has no mapping of its own. An
// existing mapping, however it arose, shadows everything below it: the walk
// never descends past a mapped type, which also bounds the traversal by the
// graph's size.
func (b *MappingBuilder) propagateDerived(
	tm map[values.TypeName]values.TypeRef,
	roots []values.TypeName,
) {
	for _, root := range roots {
		rootType, ok := b.graph.TypeFromCanonicalName(root)
		if !ok {
			continue
		}
		adapterType, ok := tm[root]
		if !ok {
			continue
		}

		stack := append([]values.TypeRef(nil), b.graph.DirectSubtypes(rootType)...)
		for len(stack) > 0 {
			sub := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			name := b.graph.CanonicalNameOf(sub)
			if name.IsEmpty() {
				continue
			}
			if _, exists := tm[name]; exists {
				continue
			}
			tm[name] = adapterType
			b.logger.Debug("mapped adapter for derived type", "root", root, "type", name)

			stack = append(stack, b.graph.DirectSubtypes(sub)...)
		}
	}
}
