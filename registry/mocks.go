package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/scenewire/imaging-host-sdk/registry/ports"
	"github.com/scenewire/imaging-host-sdk/registry/values"
)

// MockTypeGraph implements ports.TypeGraph over fixed tables for testing.
// Enumeration orders are exactly the slice orders given, so tests control
// discovery order.
type MockTypeGraph struct {
	Implementing map[values.TypeRef][]values.TypeRef
	Subtypes     map[values.TypeRef][]values.TypeRef
	Families     map[values.TypeName][]values.SchemaInfo
	Names        map[values.TypeRef]values.TypeName
}

func (g *MockTypeGraph) AllTypesImplementing(base values.TypeRef) []values.TypeRef {
	return g.Implementing[base]
}

func (g *MockTypeGraph) DirectSubtypes(t values.TypeRef) []values.TypeRef {
	return g.Subtypes[t]
}

func (g *MockTypeGraph) SchemaVariantsInFamily(family values.TypeName) []values.SchemaInfo {
	return g.Families[family]
}

func (g *MockTypeGraph) CanonicalNameOf(t values.TypeRef) values.TypeName {
	return g.Names[t]
}

func (g *MockTypeGraph) TypeFromCanonicalName(name values.TypeName) (values.TypeRef, bool) {
	for t, n := range g.Names {
		if n == name {
			return t, true
		}
	}
	return "", false
}

// MockPluginHandle implements ports.PluginHandle.
type MockPluginHandle struct {
	PluginName string
}

func (h *MockPluginHandle) Name() string { return h.PluginName }

// MockMetadataProvider implements ports.MetadataProvider over fixed tables.
// Every type present in Metadata resolves to a plugin unless listed in
// Missing.
type MockMetadataProvider struct {
	Metadata map[values.TypeRef]map[string]any
	Missing  map[values.TypeRef]bool

	ActivateErr map[values.TypeRef]error
	Activated   []values.TypeRef

	PrimFactories map[values.TypeRef]ports.PrimAdapterFactory
	APIFactories  map[values.TypeRef]ports.APISchemaAdapterFactory
}

func (p *MockMetadataProvider) MetadataFor(t values.TypeRef) (values.AdapterMetadata, bool) {
	raw, ok := p.Metadata[t]
	if !ok {
		return values.AdapterMetadata{}, false
	}
	return values.ParseAdapterMetadata(raw), true
}

func (p *MockMetadataProvider) ResolveBackingImplementation(t values.TypeRef) (ports.PluginHandle, bool) {
	if p.Missing[t] {
		return nil, false
	}
	if _, ok := p.Metadata[t]; !ok {
		return nil, false
	}
	return &mockHandle{t: t}, true
}

func (p *MockMetadataProvider) Activate(ctx context.Context, h ports.PluginHandle) error {
	mh, ok := h.(*mockHandle)
	if !ok {
		return fmt.Errorf("unexpected handle %T", h)
	}
	p.Activated = append(p.Activated, mh.t)
	return p.ActivateErr[mh.t]
}

func (p *MockMetadataProvider) PrimAdapterFactory(t values.TypeRef) (ports.PrimAdapterFactory, bool) {
	f, ok := p.PrimFactories[t]
	return f, ok
}

func (p *MockMetadataProvider) APISchemaAdapterFactory(t values.TypeRef) (ports.APISchemaAdapterFactory, bool) {
	f, ok := p.APIFactories[t]
	return f, ok
}

type mockHandle struct {
	t values.TypeRef
}

func (h *mockHandle) Name() string { return h.t.String() }

// MockPrimAdapter implements ports.PrimAdapter and records calls.
type MockPrimAdapter struct {
	AdapterType values.TypeRef
	Populated   []string
	Err         error
}

func (a *MockPrimAdapter) Populate(ctx context.Context, primPath string) error {
	a.Populated = append(a.Populated, primPath)
	return a.Err
}

// MockAPISchemaAdapter implements ports.APISchemaAdapter and records calls.
type MockAPISchemaAdapter struct {
	AdapterType values.TypeRef
	Applied     []values.TypeName
	Err         error
}

func (a *MockAPISchemaAdapter) Apply(ctx context.Context, primPath string, schema values.TypeName) error {
	a.Applied = append(a.Applied, schema)
	return a.Err
}

// NewTestLogger returns a logger that discards everything.
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
