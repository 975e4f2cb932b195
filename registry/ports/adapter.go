package ports

import (
	"context"

	"github.com/scenewire/imaging-host-sdk/registry/values"
)

// PrimAdapter is the capability interface for adapters bound to prim types.
// What an adapter does with a prim after construction is owned by the
// imaging pipeline; the registry only manufactures instances.
type PrimAdapter interface {
	// Populate ingests the prim at primPath into the adapter's output.
	Populate(ctx context.Context, primPath string) error
}

// APISchemaAdapter is the capability interface for adapters bound to applied
// API schemas.
type APISchemaAdapter interface {
	// Apply contributes the behavior of the named applied schema to the prim
	// at primPath.
	Apply(ctx context.Context, primPath string, schema values.TypeName) error
}

// PrimAdapterFactory manufactures one prim adapter instance per call.
type PrimAdapterFactory interface {
	New() (PrimAdapter, error)
}

// APISchemaAdapterFactory manufactures one API schema adapter instance per
// call.
type APISchemaAdapterFactory interface {
	New() (APISchemaAdapter, error)
}

// PrimAdapterFactoryFunc adapts a function to PrimAdapterFactory.
type PrimAdapterFactoryFunc func() (PrimAdapter, error)

func (f PrimAdapterFactoryFunc) New() (PrimAdapter, error) { return f() }

// APISchemaAdapterFactoryFunc adapts a function to APISchemaAdapterFactory.
type APISchemaAdapterFactoryFunc func() (APISchemaAdapter, error)

func (f APISchemaAdapterFactoryFunc) New() (APISchemaAdapter, error) { return f() }
