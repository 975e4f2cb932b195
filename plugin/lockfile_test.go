package plugin

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockfileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DefaultLockfileName)

	lock := NewLockfile()
	require.NoError(t, lock.Record("cylinder-adapters", PluginLock{
		Resolved: "1.2.0",
		Binary:   "cylinder.wasm",
		Digest:   FormatDigest([]byte("wasm")),
	}))
	require.NoError(t, lock.Save(path))

	loaded, err := LoadLockfile(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, 1, loaded.Version)
	assert.Equal(t, lock.Plugins, loaded.Plugins)
	assert.False(t, loaded.Generated.IsZero())

	digest, ok := loaded.DigestFor("cylinder-adapters")
	require.True(t, ok)
	assert.Equal(t, FormatDigest([]byte("wasm")), digest)
}

func TestLockfileMissingFile(t *testing.T) {
	loaded, err := LoadLockfile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// A nil lockfile answers lookups without panicking.
	_, ok := loaded.DigestFor("anything")
	assert.False(t, ok)
}

func TestLockfileRecordRequiresDigest(t *testing.T) {
	lock := NewLockfile()
	err := lock.Record("cylinder-adapters", PluginLock{Resolved: "1.0.0"})
	assert.Error(t, err)
}

func TestLockfileValidate(t *testing.T) {
	lock := &Lockfile{
		Version: 1,
		Plugins: map[string]PluginLock{
			"broken": {Resolved: "1.0.0"},
		},
	}
	assert.Error(t, lock.Validate())
}
