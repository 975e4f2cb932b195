package values

// Metadata keys recognized on adapter types. Everything else in a plugin's
// metadata bag is ignored by the registry.
const (
	MetaIsInternal              = "isInternal"
	MetaPrimTypeName            = "primTypeName"
	MetaAPISchemaName           = "apiSchemaName"
	MetaIncludeDerivedPrimTypes = "includeDerivedPrimTypes"
	MetaIncludeSchemaFamily     = "includeSchemaFamily"
)

// BoolField is an optional boolean metadata field. A field is either absent,
// holds a valid bool, or was declared with the wrong shape. Malformed fields
// are preserved rather than rejected so the mapping builder can report them
// at the pass step that consumes them.
type BoolField struct {
	Present bool
	Valid   bool
	Value   bool
}

// StringField is an optional string metadata field. See BoolField.
type StringField struct {
	Present bool
	Valid   bool
	Value   string
}

// AdapterMetadata is the closed, typed view over the raw key/value bag a
// plugin declares for one of its adapter types.
type AdapterMetadata struct {
	IsInternal              BoolField
	PrimTypeName            StringField
	APISchemaName           StringField
	IncludeDerivedPrimTypes BoolField
	IncludeSchemaFamily     BoolField
}

// ParseAdapterMetadata builds the typed view from a raw metadata bag.
// Unknown keys are dropped; known keys with the wrong shape come back
// Present but not Valid.
func ParseAdapterMetadata(raw map[string]any) AdapterMetadata {
	return AdapterMetadata{
		IsInternal:              boolField(raw, MetaIsInternal),
		PrimTypeName:            stringField(raw, MetaPrimTypeName),
		APISchemaName:           stringField(raw, MetaAPISchemaName),
		IncludeDerivedPrimTypes: boolField(raw, MetaIncludeDerivedPrimTypes),
		IncludeSchemaFamily:     boolField(raw, MetaIncludeSchemaFamily),
	}
}

func boolField(raw map[string]any, key string) BoolField {
	v, ok := raw[key]
	if !ok {
		return BoolField{}
	}
	b, ok := v.(bool)
	if !ok {
		return BoolField{Present: true}
	}
	return BoolField{Present: true, Valid: true, Value: b}
}

func stringField(raw map[string]any, key string) StringField {
	v, ok := raw[key]
	if !ok {
		return StringField{}
	}
	s, ok := v.(string)
	if !ok {
		return StringField{Present: true}
	}
	return StringField{Present: true, Valid: true, Value: s}
}
