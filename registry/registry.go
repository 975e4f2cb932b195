// Package registry resolves adapter-plugin metadata into lookup tables from
// application type names to adapter types, and manufactures adapter
// instances from those tables.
package registry

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/scenewire/imaging-host-sdk/config"
	"github.com/scenewire/imaging-host-sdk/plugin"
	"github.com/scenewire/imaging-host-sdk/registry/ports"
	"github.com/scenewire/imaging-host-sdk/registry/services"
	"github.com/scenewire/imaging-host-sdk/registry/values"
	"github.com/scenewire/imaging-host-sdk/typegraph"
)

// InstanceAdapterKey is the reserved adapter key served by the built-in
// instancing adapter, regardless of which plugins are discovered.
const InstanceAdapterKey = values.TypeName("__instanceAdapter__")

// Registry owns the resolved adapter tables for both adapter families. The
// tables are built once at construction and immutable afterwards; every
// lookup and enumeration is a pure read and safe for unsynchronized
// concurrent use.
type Registry struct {
	provider ports.MetadataProvider
	logger   *slog.Logger

	externalEnabled bool

	typeMap     map[values.TypeName]values.TypeRef
	adapterKeys []values.TypeName

	apiSchemaMap  map[values.TypeName]values.TypeRef
	apiSchemaKeys []values.TypeName

	keylessTypes []values.TypeRef
}

// Option configures a Registry before its tables are built.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithExternalPlugins overrides the external-plugin gate. The default
// registry reads it from IMAGING_ENABLE_PLUGINS instead.
func WithExternalPlugins(enabled bool) Option {
	return func(r *Registry) { r.externalEnabled = enabled }
}

// New builds a registry from the given collaborators. The full two-family
// mapping build runs synchronously before New returns.
func New(graph ports.TypeGraph, provider ports.MetadataProvider, opts ...Option) *Registry {
	r := &Registry{
		provider:        provider,
		logger:          slog.Default(),
		externalEnabled: true,
	}
	for _, opt := range opts {
		opt(r)
	}

	builder := services.NewMappingBuilder(graph, provider, r.externalEnabled, r.logger)

	prim := builder.Build(services.FamilyOptions{
		Base: ports.PrimAdapterBase,
		Name: services.PrimTypeNameField,
	})
	r.typeMap = prim.TypeMap
	r.adapterKeys = prim.Keys

	api := builder.Build(services.FamilyOptions{
		Base:         ports.APISchemaAdapterBase,
		Name:         services.APISchemaNameField,
		AllowKeyless: true,
	})
	r.apiSchemaMap = api.TypeMap
	r.apiSchemaKeys = api.Keys
	r.keylessTypes = api.Keyless

	return r
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry. The first caller triggers the
// mapping build against the default type graph and a plugin provider rooted
// at IMAGING_PLUGIN_PATH; concurrent callers block until it completes and
// then share the finished tables. There is no teardown.
func Default() *Registry {
	defaultOnce.Do(func() {
		settings, err := config.FromEnv()
		if err != nil {
			slog.Warn("invalid host environment, falling back to defaults", "error", err)
			settings = config.Defaults()
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: settings.SlogLevel(),
		}))

		graph := typegraph.Default()
		provider := plugin.NewProvider(graph,
			plugin.WithRoot(settings.PluginPath),
			plugin.WithLogger(logger),
		)

		defaultRegistry = New(graph, provider,
			WithLogger(logger),
			WithExternalPlugins(settings.EnablePlugins),
		)
	})
	return defaultRegistry
}

// HasAdapter reports whether a prim adapter is registered for the given key.
// The reserved built-in key is always present.
func (r *Registry) HasAdapter(name values.TypeName) bool {
	if name == InstanceAdapterKey {
		return true
	}
	_, ok := r.typeMap[name]
	return ok
}

// HasAPISchemaAdapter reports whether an API schema adapter is registered
// for the given key.
func (r *Registry) HasAPISchemaAdapter(name values.TypeName) bool {
	_, ok := r.apiSchemaMap[name]
	return ok
}

// AdapterKeys returns the prim adapter keys, sorted. The snapshot is taken
// once at construction and is stable for the process lifetime.
func (r *Registry) AdapterKeys() []values.TypeName {
	return append([]values.TypeName(nil), r.adapterKeys...)
}

// APISchemaAdapterKeys returns the API schema adapter keys, sorted. Keyless
// adapters never appear here.
func (r *Registry) APISchemaAdapterKeys() []values.TypeName {
	return append([]values.TypeName(nil), r.apiSchemaKeys...)
}

// ConstructAdapter manufactures the prim adapter registered for name.
// Unknown names yield nil without error; callers branch on emptiness.
// The reserved built-in key bypasses the tables entirely.
func (r *Registry) ConstructAdapter(ctx context.Context, name values.TypeName) ports.PrimAdapter {
	if name == InstanceAdapterKey {
		return newInstanceAdapter(r.logger)
	}
	a, _ := constructByName[ports.PrimAdapter, ports.PrimAdapterFactory](
		ctx, r.logger, r.provider, r.provider.PrimAdapterFactory, r.typeMap, name)
	return a
}

// ConstructAPISchemaAdapter manufactures the API schema adapter registered
// for name. Unknown names yield nil without error.
func (r *Registry) ConstructAPISchemaAdapter(ctx context.Context, name values.TypeName) ports.APISchemaAdapter {
	a, _ := constructByName[ports.APISchemaAdapter, ports.APISchemaAdapterFactory](
		ctx, r.logger, r.provider, r.provider.APISchemaAdapterFactory, r.apiSchemaMap, name)
	return a
}

// ConstructKeylessAPISchemaAdapters constructs one instance per keyless
// adapter type. Types that fail construction are dropped from the result;
// the factory layer already reported them.
func (r *Registry) ConstructKeylessAPISchemaAdapters(ctx context.Context) []ports.APISchemaAdapter {
	out := make([]ports.APISchemaAdapter, 0, len(r.keylessTypes))
	for _, t := range r.keylessTypes {
		a, ok := constructByType[ports.APISchemaAdapter, ports.APISchemaAdapterFactory](
			ctx, r.logger, r.provider, r.provider.APISchemaAdapterFactory, "", t)
		if ok {
			out = append(out, a)
		}
	}
	return out
}
