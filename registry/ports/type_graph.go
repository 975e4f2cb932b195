// Package ports declares the contracts between the adapter registry and the
// collaborators it is resolved against.
package ports

import (
	"github.com/scenewire/imaging-host-sdk/registry/values"
)

// Well-known capability base types adapter implementations register under.
const (
	PrimAdapterBase      = values.TypeRef("PrimAdapter")
	APISchemaAdapterBase = values.TypeRef("APISchemaAdapter")
)

// TypeGraph is the read side of the type-inheritance graph the registry is
// resolved against. The mapping build is reproducible up to the order
// AllTypesImplementing reports candidates in, so implementations should
// return a stable enumeration.
type TypeGraph interface {
	// AllTypesImplementing returns every registered type transitively
	// deriving from the given capability base type.
	AllTypesImplementing(base values.TypeRef) []values.TypeRef

	// DirectSubtypes returns the immediate subtypes of t.
	DirectSubtypes(t values.TypeRef) []values.TypeRef

	// SchemaVariantsInFamily returns the versioned schema variants belonging
	// to a schema family, or nil when the family is unknown.
	SchemaVariantsInFamily(family values.TypeName) []values.SchemaInfo

	// CanonicalNameOf resolves a type to its canonical schema type name. An
	// empty name means the type has no schema identity.
	CanonicalNameOf(t values.TypeRef) values.TypeName

	// TypeFromCanonicalName resolves a canonical name back to its type.
	TypeFromCanonicalName(name values.TypeName) (values.TypeRef, bool)
}

// TypeRegistrar is the write side of the type graph, used by metadata
// providers while they discover plugin manifests and by embedders when they
// declare their application schema types.
type TypeRegistrar interface {
	// RegisterType records t and its direct base types. Unknown bases are
	// registered implicitly.
	RegisterType(t values.TypeRef, bases ...values.TypeRef) error

	// SetCanonicalName binds a canonical schema type name to t.
	SetCanonicalName(t values.TypeRef, name values.TypeName) error

	// RegisterSchemaVariant adds one versioned variant to a schema family.
	RegisterSchemaVariant(family values.TypeName, info values.SchemaInfo) error
}
