package plugin

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
)

// Handle identifies one discovered plugin and caches its activation. It
// implements ports.PluginHandle.
type Handle struct {
	name    string
	version string
	// binaryPath is relative to the provider's plugin root.
	binaryPath string
	// digest pins the binary contents; empty means unpinned.
	digest string

	once   sync.Once
	err    error
	module Module
}

// Name identifies the plugin for diagnostics.
func (h *Handle) Name() string { return h.name }

// Version is the version string the plugin's manifest declares.
func (h *Handle) Version() string { return h.version }

// activate loads the plugin binary exactly once. Repeated calls return the
// first outcome, success or failure.
func (h *Handle) activate(ctx context.Context, fsys fs.FS, host ModuleHost, logger *slog.Logger) error {
	h.once.Do(func() {
		h.err = h.load(ctx, fsys, host, logger)
	})
	return h.err
}

func (h *Handle) load(ctx context.Context, fsys fs.FS, host ModuleHost, logger *slog.Logger) error {
	wasmBytes, err := fs.ReadFile(fsys, h.binaryPath)
	if err != nil {
		return fmt.Errorf("reading plugin binary %q: %w", h.binaryPath, err)
	}

	if h.digest != "" {
		if err := VerifyDigest(wasmBytes, h.digest); err != nil {
			return fmt.Errorf("plugin %q: %w", h.name, err)
		}
	}

	module, err := host.Load(ctx, wasmBytes)
	if err != nil {
		return fmt.Errorf("loading plugin %q: %w", h.name, err)
	}

	h.module = module
	logger.Info("plugin activated",
		"plugin", h.name,
		"version", h.version,
		"binary", h.binaryPath,
	)
	return nil
}

// activatedModule returns the loaded module, or ErrNotActivated before a
// successful activate.
func (h *Handle) activatedModule() (Module, error) {
	if h.module == nil {
		return nil, fmt.Errorf("plugin %q: %w", h.name, ErrNotActivated)
	}
	return h.module, nil
}
