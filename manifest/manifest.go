// Package manifest defines the on-disk description of an adapter plugin.
package manifest

import (
	"fmt"
)

// FileNames are the manifest file names recognized during discovery.
var FileNames = []string{"plugininfo.yaml", "plugininfo.yml", "plugininfo.json"}

// Manifest describes one adapter plugin bundle: its identity, host
// requirements, the wasm binary implementing it, and the adapter types it
// registers. Discovery reads manifests without loading any code; the binary
// is only opened when an adapter is first constructed.
type Manifest struct {
	// Name uniquely identifies the plugin within a plugin root.
	Name string `yaml:"name" json:"name" jsonschema:"required,minLength=1"`

	// Version is the plugin's own version, informational.
	Version string `yaml:"version" json:"version,omitempty"`

	// HostAPI is the host API version the plugin was built against, e.g.
	// "1.2.0". The host accepts plugins within the same major version whose
	// minor is not newer than its own. Empty accepts any host.
	HostAPI string `yaml:"hostApi" json:"hostApi,omitempty"`

	// Binary is the wasm module path, relative to the manifest directory.
	// Empty for manifests describing in-process adapters.
	Binary string `yaml:"binary" json:"binary,omitempty"`

	// Digest optionally pins the binary content, e.g. "sha256:ab12...".
	Digest string `yaml:"digest" json:"digest,omitempty"`

	// Types maps each adapter type the plugin registers to its declaration.
	Types map[string]TypeDecl `yaml:"types" json:"types" jsonschema:"required"`
}

// TypeDecl declares one adapter type: the capability bases it derives from
// and the opaque metadata bag the registry resolves (primTypeName,
// includeDerivedPrimTypes, and friends).
type TypeDecl struct {
	Bases    []string       `yaml:"bases" json:"bases" jsonschema:"required,minItems=1"`
	Metadata map[string]any `yaml:"metadata" json:"metadata,omitempty"`
}

// Validate checks the structural rules schema validation cannot express.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest has no name")
	}
	if len(m.Types) == 0 {
		return fmt.Errorf("manifest %q declares no types", m.Name)
	}
	for name, decl := range m.Types {
		if name == "" {
			return fmt.Errorf("manifest %q declares an unnamed type", m.Name)
		}
		if len(decl.Bases) == 0 {
			return fmt.Errorf("type %q in manifest %q has no base types", name, m.Name)
		}
	}
	return nil
}
