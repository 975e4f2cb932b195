package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
)

// DefaultLockfileName is the lockfile the provider looks for under the
// plugin root.
const DefaultLockfileName = "plugins.lock.yaml"

// Lockfile pins plugin binaries for reproducible activation.
//
// Invariants:
// - Each plugin entry must have a digest
// - Generated timestamp must be set when entries exist
type Lockfile struct {
	Generated time.Time             `yaml:"generated"`
	Plugins   map[string]PluginLock `yaml:"plugins"`
	Version   int                   `yaml:"lockfile_version"`
}

// PluginLock is one pinned plugin. Immutable after creation.
type PluginLock struct {
	Resolved string `yaml:"resolved"`
	Binary   string `yaml:"binary"`
	Digest   string `yaml:"sha256"`
}

// NewLockfile creates an empty lockfile at the current version.
func NewLockfile() *Lockfile {
	return &Lockfile{
		Version:   1,
		Generated: time.Now().UTC(),
		Plugins:   make(map[string]PluginLock),
	}
}

// LoadLockfile reads a lockfile from path. A missing file is not an error;
// it returns (nil, nil).
func LoadLockfile(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading lockfile %q: %w", path, err)
	}

	var lock Lockfile
	if err := yaml.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("decoding lockfile YAML: %w", err)
	}
	if err := lock.Validate(); err != nil {
		return nil, fmt.Errorf("invalid lockfile: %w", err)
	}
	return &lock, nil
}

// Save writes the lockfile to path, creating parent directories as needed.
func (l *Lockfile) Save(path string) error {
	if err := l.Validate(); err != nil {
		return fmt.Errorf("invalid lockfile: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating lockfile directory: %w", err)
	}

	data, err := yaml.Marshal(l)
	if err != nil {
		return fmt.Errorf("encoding lockfile YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing lockfile %q: %w", path, err)
	}
	return nil
}

// Record adds or replaces a plugin entry. The digest is required.
func (l *Lockfile) Record(name string, lock PluginLock) error {
	if lock.Digest == "" {
		return fmt.Errorf("plugin %q: digest is required", name)
	}
	if l.Plugins == nil {
		l.Plugins = make(map[string]PluginLock)
	}
	l.Plugins[name] = lock
	return nil
}

// DigestFor returns the pinned digest for a plugin, if any.
func (l *Lockfile) DigestFor(name string) (string, bool) {
	if l == nil {
		return "", false
	}
	lock, ok := l.Plugins[name]
	if !ok || lock.Digest == "" {
		return "", false
	}
	return lock.Digest, true
}

// Validate checks lockfile invariants.
func (l *Lockfile) Validate() error {
	if len(l.Plugins) > 0 && l.Generated.IsZero() {
		return fmt.Errorf("generated timestamp is required")
	}
	for name, lock := range l.Plugins {
		if lock.Digest == "" {
			return fmt.Errorf("plugin %q: digest is required", name)
		}
	}
	return nil
}
