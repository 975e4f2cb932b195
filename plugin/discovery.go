package plugin

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/scenewire/imaging-host-sdk/manifest"
	"github.com/scenewire/imaging-host-sdk/parser"
)

// manifestGlob matches plugin manifests at any depth below the plugin root.
const manifestGlob = "**/plugininfo.{yaml,yml,json}"

// Discovered is one plugin manifest found under the plugin root.
type Discovered struct {
	Manifest *manifest.Manifest
	// Dir is the manifest's directory relative to the root; binary paths in
	// the manifest resolve against it.
	Dir string
	// Path is the manifest file itself, relative to the root.
	Path string
}

// discoverManifests walks the plugin filesystem and parses every manifest it
// finds. A malformed manifest is logged and skipped; it never fails the
// whole scan. Results are ordered by path so repeated scans agree.
func discoverManifests(fsys fs.FS, logger *slog.Logger) ([]Discovered, error) {
	matches, err := doublestar.Glob(fsys, manifestGlob)
	if err != nil {
		return nil, fmt.Errorf("globbing plugin manifests: %w", err)
	}
	sort.Strings(matches)

	found := make([]Discovered, 0, len(matches))
	for _, match := range matches {
		m, err := readManifest(fsys, match)
		if err != nil {
			logger.Warn("skipping plugin manifest", "path", match, "error", err)
			continue
		}
		found = append(found, Discovered{
			Manifest: m,
			Dir:      path.Dir(match),
			Path:     match,
		})
	}
	return found, nil
}

// readManifest parses and validates a single manifest file.
func readManifest(fsys fs.FS, name string) (*manifest.Manifest, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	p, err := parser.ForPath(name)
	if err != nil {
		return nil, err
	}

	doc, err := p.Document(data)
	if err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := ValidateManifest(doc); err != nil {
		return nil, fmt.Errorf("validating manifest: %w", err)
	}

	m, err := p.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
