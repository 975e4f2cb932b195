// Package values contains the value objects shared by the adapter registry
// and its collaborators.
package values

// TypeName is the canonical, interned name of an application type: a prim
// type such as "Cylinder_1", or an applied API schema name. Comparison and
// hashing are by value.
type TypeName string

// IsEmpty reports whether the name is the empty name.
func (n TypeName) IsEmpty() bool { return n == "" }

func (n TypeName) String() string { return string(n) }

// TypeRef is an opaque handle to a type registered in the type graph. Both
// adapter implementation types and application schema types are addressed by
// TypeRef. The registry only stores references; it never owns the backing
// implementation.
type TypeRef string

// IsValid reports whether the handle refers to a registered type.
func (r TypeRef) IsValid() bool { return r != "" }

func (r TypeRef) String() string { return string(r) }

// SchemaInfo describes one versioned variant inside a schema family.
// Identifier is the name the variant is looked up by; CanonicalName is the
// name its registered type resolves to. The two differ for aliased schema
// versions.
type SchemaInfo struct {
	Identifier    TypeName
	CanonicalName TypeName
}
