package ports

import (
	"context"

	"github.com/scenewire/imaging-host-sdk/registry/values"
)

// PluginHandle identifies the loadable backing implementation behind one or
// more adapter types.
type PluginHandle interface {
	// Name identifies the plugin for diagnostics.
	Name() string
}

// MetadataProvider supplies per-type adapter metadata and manufactures
// adapter instances on demand.
type MetadataProvider interface {
	// MetadataFor returns the metadata declared for t, if any.
	MetadataFor(t values.TypeRef) (values.AdapterMetadata, bool)

	// ResolveBackingImplementation resolves t to the plugin that implements
	// it. Types without a backing plugin are skipped during discovery.
	ResolveBackingImplementation(t values.TypeRef) (PluginHandle, bool)

	// Activate loads the backing implementation. It is idempotent per
	// handle; repeated calls after a successful load are no-ops.
	Activate(ctx context.Context, h PluginHandle) error

	// PrimAdapterFactory returns the prim adapter factory registered for t.
	PrimAdapterFactory(t values.TypeRef) (PrimAdapterFactory, bool)

	// APISchemaAdapterFactory returns the API schema adapter factory
	// registered for t.
	APISchemaAdapterFactory(t values.TypeRef) (APISchemaAdapterFactory, bool)
}
