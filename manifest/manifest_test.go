package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validManifest() *Manifest {
	return &Manifest{
		Name:    "cylinder-adapters",
		Version: "1.0.0",
		Binary:  "cylinder.wasm",
		Types: map[string]TypeDecl{
			"CylinderAdapter": {
				Bases:    []string{"PrimAdapter"},
				Metadata: map[string]any{"primTypeName": "Cylinder"},
			},
		},
	}
}

func TestManifestValidate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		assert.NoError(t, validManifest().Validate())
	})

	t.Run("MissingName", func(t *testing.T) {
		m := validManifest()
		m.Name = ""
		assert.Error(t, m.Validate())
	})

	t.Run("NoTypes", func(t *testing.T) {
		m := validManifest()
		m.Types = nil
		assert.Error(t, m.Validate())
	})

	t.Run("TypeWithoutBases", func(t *testing.T) {
		m := validManifest()
		m.Types["BareAdapter"] = TypeDecl{}
		assert.Error(t, m.Validate())
	})

	t.Run("UnnamedType", func(t *testing.T) {
		m := validManifest()
		m.Types[""] = TypeDecl{Bases: []string{"PrimAdapter"}}
		assert.Error(t, m.Validate())
	})
}
