package plugin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	schemavalidator "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/scenewire/imaging-host-sdk/manifest"
)

const manifestSchemaName = "manifest.schema.json"

var (
	compiledSchema *schemavalidator.Schema
	compileOnce    sync.Once
	compileErr     error
)

// manifestSchema reflects the JSON schema for plugin manifests from the
// manifest struct and compiles it once.
func manifestSchema() (*schemavalidator.Schema, error) {
	compileOnce.Do(func() {
		reflector := new(jsonschema.Reflector)
		reflector.ExpandedStruct = true

		generated, err := json.Marshal(reflector.Reflect(&manifest.Manifest{}))
		if err != nil {
			compileErr = fmt.Errorf("marshaling generated schema: %w", err)
			return
		}

		compiler := schemavalidator.NewCompiler()
		if err := compiler.AddResource(manifestSchemaName, bytes.NewReader(generated)); err != nil {
			compileErr = fmt.Errorf("adding schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile(manifestSchemaName)
	})
	return compiledSchema, compileErr
}

// ValidateManifest checks a decoded manifest document against the generated
// schema before it is bound to the manifest struct. doc is the generic form
// a parser's Document method returns.
func ValidateManifest(doc any) error {
	schema, err := manifestSchema()
	if err != nil {
		return fmt.Errorf("loading manifest schema: %w", err)
	}

	// Round-trip through JSON so YAML-decoded values carry JSON number and
	// map types the validator expects.
	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("normalizing manifest document: %w", err)
	}
	var instance any
	if err := json.Unmarshal(encoded, &instance); err != nil {
		return fmt.Errorf("normalizing manifest document: %w", err)
	}

	return schema.Validate(instance)
}
