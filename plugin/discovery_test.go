package plugin

import (
	"io"
	"log/slog"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const cylinderManifest = `
name: cylinder-adapters
version: 1.0.0
binary: cylinder.wasm
types:
  CylinderAdapter:
    bases: [PrimAdapter]
    metadata:
      primTypeName: Cylinder
      includeDerivedPrimTypes: true
`

func TestDiscoverManifests(t *testing.T) {
	t.Run("FindsNestedManifests", func(t *testing.T) {
		fsys := fstest.MapFS{
			"cylinder/plugininfo.yaml": &fstest.MapFile{Data: []byte(cylinderManifest)},
			"vendor/sphere/plugininfo.json": &fstest.MapFile{
				Data: []byte(`{"name":"sphere-adapters","binary":"sphere.wasm","types":{"SphereAdapter":{"bases":["PrimAdapter"]}}}`),
			},
			"cylinder/cylinder.wasm": &fstest.MapFile{Data: []byte{0}},
			"README.md":              &fstest.MapFile{Data: []byte("docs")},
		}

		found, err := discoverManifests(fsys, discardLogger())
		require.NoError(t, err)
		require.Len(t, found, 2)

		// Sorted by path.
		assert.Equal(t, "cylinder-adapters", found[0].Manifest.Name)
		assert.Equal(t, "cylinder", found[0].Dir)
		assert.Equal(t, "sphere-adapters", found[1].Manifest.Name)
		assert.Equal(t, "vendor/sphere", found[1].Dir)
	})

	t.Run("SkipsMalformedManifest", func(t *testing.T) {
		fsys := fstest.MapFS{
			"good/plugininfo.yaml": &fstest.MapFile{Data: []byte(cylinderManifest)},
			"bad/plugininfo.yaml":  &fstest.MapFile{Data: []byte("types: [not, a, map]")},
		}

		found, err := discoverManifests(fsys, discardLogger())
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "cylinder-adapters", found[0].Manifest.Name)
	})

	t.Run("SkipsManifestWithoutTypes", func(t *testing.T) {
		fsys := fstest.MapFS{
			"empty/plugininfo.yaml": &fstest.MapFile{Data: []byte("name: empty\ntypes: {}\n")},
		}

		found, err := discoverManifests(fsys, discardLogger())
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("EmptyTree", func(t *testing.T) {
		found, err := discoverManifests(fstest.MapFS{}, discardLogger())
		require.NoError(t, err)
		assert.Empty(t, found)
	})
}
