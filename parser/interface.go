// Package parser provides codecs for adapter plugin manifests.
package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/scenewire/imaging-host-sdk/manifest"
)

// ManifestParser parses raw manifest bytes.
type ManifestParser interface {
	// Parse unmarshals manifest bytes into a Manifest struct.
	Parse(data []byte) (*manifest.Manifest, error)

	// Document unmarshals manifest bytes into a generic document suitable
	// for schema validation.
	Document(data []byte) (any, error)
}

// ForPath selects a parser by file extension.
func ForPath(path string) (ManifestParser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewYamlManifestParser(), nil
	case ".json":
		return NewJSONManifestParser(), nil
	default:
		return nil, fmt.Errorf("unsupported manifest format: %s", path)
	}
}
