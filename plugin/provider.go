// Package plugin discovers adapter plugins on the filesystem, validates
// their manifests, and serves adapter metadata and factories to the
// registry. Plugin binaries are WASM modules loaded lazily at activation.
package plugin

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/scenewire/imaging-host-sdk/manifest"
	"github.com/scenewire/imaging-host-sdk/registry/ports"
	"github.com/scenewire/imaging-host-sdk/registry/values"
	"github.com/scenewire/imaging-host-sdk/wasmhost"
)

// entry is everything the provider knows about one adapter type.
type entry struct {
	metadata values.AdapterMetadata
	// handle backs wasm-implemented types; nil for in-process registrations.
	handle      *Handle
	primFactory ports.PrimAdapterFactory
	apiFactory  ports.APISchemaAdapterFactory
}

// Provider implements ports.MetadataProvider over a plugin directory tree.
// Discovery runs once at construction; activation of each plugin is deferred
// until the registry first asks for it.
type Provider struct {
	root         string
	fsys         fs.FS
	host         ModuleHost
	logger       *slog.Logger
	lockfilePath string

	mu      sync.RWMutex
	entries map[values.TypeRef]*entry
	handles map[string]*Handle
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithRoot sets the directory scanned for plugin manifests. An empty root
// leaves the provider without plugins.
func WithRoot(root string) ProviderOption {
	return func(p *Provider) { p.root = root }
}

// WithFS sets the plugin filesystem directly, overriding WithRoot. Used by
// tests and embedders with non-disk plugin sources.
func WithFS(fsys fs.FS) ProviderOption {
	return func(p *Provider) { p.fsys = fsys }
}

// WithLogger sets the provider's logger.
func WithLogger(l *slog.Logger) ProviderOption {
	return func(p *Provider) { p.logger = l }
}

// WithModuleHost sets the runtime plugins are loaded into.
func WithModuleHost(host ModuleHost) ProviderOption {
	return func(p *Provider) { p.host = host }
}

// WithLockfilePath points the provider at a lockfile whose digests pin
// plugin binaries. Defaults to plugins.lock.yaml under the plugin root.
func WithLockfilePath(lockfilePath string) ProviderOption {
	return func(p *Provider) { p.lockfilePath = lockfilePath }
}

// NewProvider scans for plugin manifests and registers every declared
// adapter type on the registrar. Scan failures are logged, not returned; a
// provider is always usable, possibly empty.
func NewProvider(registrar ports.TypeRegistrar, opts ...ProviderOption) *Provider {
	p := &Provider{
		logger:  slog.Default(),
		entries: make(map[values.TypeRef]*entry),
		handles: make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.fsys == nil && p.root != "" {
		p.fsys = os.DirFS(p.root)
	}
	if p.lockfilePath == "" && p.root != "" {
		p.lockfilePath = filepath.Join(p.root, DefaultLockfileName)
	}
	if p.host == nil {
		p.host = NewWasmModuleHost(wasmhost.NewLazyExecutor(wasmhost.WithLogger(p.logger)))
	}

	if p.fsys != nil {
		p.discover(registrar)
	}
	return p
}

func (p *Provider) discover(registrar ports.TypeRegistrar) {
	var lock *Lockfile
	if p.lockfilePath != "" {
		loaded, err := LoadLockfile(p.lockfilePath)
		if err != nil {
			p.logger.Warn("ignoring unreadable lockfile",
				"path", p.lockfilePath, "error", err)
		} else {
			lock = loaded
		}
	}

	found, err := discoverManifests(p.fsys, p.logger)
	if err != nil {
		p.logger.Error("plugin discovery failed", "root", p.root, "error", err)
		return
	}

	for _, d := range found {
		p.addPlugin(registrar, d, lock)
	}
}

func (p *Provider) addPlugin(registrar ports.TypeRegistrar, d Discovered, lock *Lockfile) {
	m := d.Manifest

	if err := CheckHostAPI(m.Name, m.HostAPI); err != nil {
		p.logger.Warn("skipping incompatible plugin", "manifest", d.Path, "error", err)
		return
	}
	if _, dup := p.handles[m.Name]; dup {
		p.logger.Warn("skipping plugin with duplicate name",
			"plugin", m.Name, "manifest", d.Path)
		return
	}

	digest := m.Digest
	if pinned, ok := lock.DigestFor(m.Name); ok {
		digest = pinned
	}

	h := &Handle{
		name:       m.Name,
		version:    m.Version,
		binaryPath: path.Join(d.Dir, m.Binary),
		digest:     digest,
	}
	p.handles[m.Name] = h

	// Stable registration order keeps duplicate-type resolution reproducible
	// across scans.
	typeNames := make([]string, 0, len(m.Types))
	for typeName := range m.Types {
		typeNames = append(typeNames, typeName)
	}
	sort.Strings(typeNames)

	for _, typeName := range typeNames {
		decl := m.Types[typeName]
		t := values.TypeRef(typeName)

		if _, exists := p.entries[t]; exists {
			p.logger.Warn("skipping duplicate adapter type",
				"type", typeName, "plugin", m.Name)
			continue
		}
		if err := p.registerDecl(registrar, t, decl); err != nil {
			p.logger.Warn("skipping adapter type",
				"type", typeName, "plugin", m.Name, "error", err)
			continue
		}

		p.entries[t] = &entry{
			metadata: values.ParseAdapterMetadata(decl.Metadata),
			handle:   h,
		}
	}
}

func (p *Provider) registerDecl(registrar ports.TypeRegistrar, t values.TypeRef, decl manifest.TypeDecl) error {
	bases := make([]values.TypeRef, 0, len(decl.Bases))
	for _, base := range decl.Bases {
		bases = append(bases, values.TypeRef(base))
	}
	return registrar.RegisterType(t, bases...)
}

// RegisterPrimAdapter registers an in-process prim adapter implementation.
// It serves embedders that ship adapters compiled into the host binary;
// such types need no activation.
func (p *Provider) RegisterPrimAdapter(registrar ports.TypeRegistrar, name string, raw map[string]any, factory ports.PrimAdapterFactory) error {
	return p.registerInProcess(registrar, name, raw, ports.PrimAdapterBase, func(e *entry) {
		e.primFactory = factory
	})
}

// RegisterAPISchemaAdapter registers an in-process API schema adapter
// implementation.
func (p *Provider) RegisterAPISchemaAdapter(registrar ports.TypeRegistrar, name string, raw map[string]any, factory ports.APISchemaAdapterFactory) error {
	return p.registerInProcess(registrar, name, raw, ports.APISchemaAdapterBase, func(e *entry) {
		e.apiFactory = factory
	})
}

func (p *Provider) registerInProcess(registrar ports.TypeRegistrar, name string, raw map[string]any, base values.TypeRef, bind func(*entry)) error {
	t := values.TypeRef(name)

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.entries[t]; exists {
		return fmt.Errorf("adapter type already registered: %s", name)
	}
	if err := registrar.RegisterType(t, base); err != nil {
		return err
	}

	e := &entry{metadata: values.ParseAdapterMetadata(raw)}
	bind(e)
	p.entries[t] = e
	return nil
}

// MetadataFor returns the metadata declared for t, if any.
func (p *Provider) MetadataFor(t values.TypeRef) (values.AdapterMetadata, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	e, ok := p.entries[t]
	if !ok {
		return values.AdapterMetadata{}, false
	}
	return e.metadata, true
}

// ResolveBackingImplementation resolves t to the plugin implementing it.
// In-process registrations resolve to a built-in pseudo handle.
func (p *Provider) ResolveBackingImplementation(t values.TypeRef) (ports.PluginHandle, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	e, ok := p.entries[t]
	if !ok {
		return nil, false
	}
	if e.handle == nil {
		return builtinHandle{}, true
	}
	return e.handle, true
}

// Activate loads the backing plugin binary. It is idempotent per handle and
// caches the first failure.
func (p *Provider) Activate(ctx context.Context, h ports.PluginHandle) error {
	switch handle := h.(type) {
	case builtinHandle:
		return nil
	case *Handle:
		return handle.activate(ctx, p.fsys, p.host, p.logger)
	default:
		return fmt.Errorf("unknown plugin handle type %T", h)
	}
}

// PrimAdapterFactory returns the prim adapter factory registered for t.
func (p *Provider) PrimAdapterFactory(t values.TypeRef) (ports.PrimAdapterFactory, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	e, ok := p.entries[t]
	if !ok {
		return nil, false
	}
	if e.primFactory != nil {
		return e.primFactory, true
	}
	if e.handle != nil {
		return wasmPrimFactory{handle: e.handle, typeName: t.String()}, true
	}
	return nil, false
}

// APISchemaAdapterFactory returns the API schema adapter factory registered
// for t.
func (p *Provider) APISchemaAdapterFactory(t values.TypeRef) (ports.APISchemaAdapterFactory, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	e, ok := p.entries[t]
	if !ok {
		return nil, false
	}
	if e.apiFactory != nil {
		return e.apiFactory, true
	}
	if e.handle != nil {
		return wasmAPIFactory{handle: e.handle, typeName: t.String()}, true
	}
	return nil, false
}

// Plugins returns the discovered plugin handles, sorted by name.
func (p *Provider) Plugins() []*Handle {
	p.mu.RLock()
	defer p.mu.RUnlock()

	handles := make([]*Handle, 0, len(p.handles))
	for _, h := range p.handles {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i].name < handles[j].name })
	return handles
}

// Close releases every activated plugin module.
func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for _, h := range p.handles {
		if h.module == nil {
			continue
		}
		if err := h.module.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// builtinHandle backs adapter types compiled into the host binary.
type builtinHandle struct{}

func (builtinHandle) Name() string { return "builtin" }

// wasmPrimFactory constructs prim adapters through an activated plugin
// module.
type wasmPrimFactory struct {
	handle   *Handle
	typeName string
}

func (f wasmPrimFactory) New() (ports.PrimAdapter, error) {
	module, err := f.handle.activatedModule()
	if err != nil {
		return nil, err
	}
	return module.NewPrimAdapter(f.typeName)
}

// wasmAPIFactory constructs API schema adapters through an activated plugin
// module.
type wasmAPIFactory struct {
	handle   *Handle
	typeName string
}

func (f wasmAPIFactory) New() (ports.APISchemaAdapter, error) {
	module, err := f.handle.activatedModule()
	if err != nil {
		return nil, err
	}
	return module.NewAPISchemaAdapter(f.typeName)
}
