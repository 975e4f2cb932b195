package plugin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenewire/imaging-host-sdk/registry/ports"
	"github.com/scenewire/imaging-host-sdk/registry/values"
	"github.com/scenewire/imaging-host-sdk/typegraph"
)

type fakeAdapter struct{}

func (fakeAdapter) Populate(ctx context.Context, primPath string) error { return nil }

type fakeAPIAdapter struct{}

func (fakeAPIAdapter) Apply(ctx context.Context, primPath string, schema values.TypeName) error {
	return nil
}

type fakeModule struct {
	closed bool
}

func (m *fakeModule) NewPrimAdapter(typeName string) (ports.PrimAdapter, error) {
	return fakeAdapter{}, nil
}

func (m *fakeModule) NewAPISchemaAdapter(typeName string) (ports.APISchemaAdapter, error) {
	return fakeAPIAdapter{}, nil
}

func (m *fakeModule) Close(ctx context.Context) error {
	m.closed = true
	return nil
}

type fakeHost struct {
	loads   int
	loadErr error
	module  *fakeModule
}

func (h *fakeHost) Load(ctx context.Context, wasmBytes []byte) (Module, error) {
	h.loads++
	if h.loadErr != nil {
		return nil, h.loadErr
	}
	if h.module == nil {
		h.module = &fakeModule{}
	}
	return h.module, nil
}

func pluginFS(manifest string, binary []byte) fstest.MapFS {
	return fstest.MapFS{
		"cylinder/plugininfo.yaml": &fstest.MapFile{Data: []byte(manifest)},
		"cylinder/cylinder.wasm":   &fstest.MapFile{Data: binary},
	}
}

func TestProviderDiscovery(t *testing.T) {
	graph := typegraph.NewGraph()
	provider := NewProvider(graph,
		WithFS(pluginFS(cylinderManifest, []byte("wasm"))),
		WithModuleHost(&fakeHost{}),
		WithLogger(discardLogger()),
	)

	cylinder := values.TypeRef("CylinderAdapter")

	t.Run("RegistersTypesOnGraph", func(t *testing.T) {
		assert.Contains(t, graph.AllTypesImplementing(ports.PrimAdapterBase), cylinder)
	})

	t.Run("ServesMetadata", func(t *testing.T) {
		md, ok := provider.MetadataFor(cylinder)
		require.True(t, ok)
		assert.True(t, md.PrimTypeName.Valid)
		assert.Equal(t, "Cylinder", md.PrimTypeName.Value)
		assert.True(t, md.IncludeDerivedPrimTypes.Value)
	})

	t.Run("UnknownTypeHasNoMetadata", func(t *testing.T) {
		_, ok := provider.MetadataFor(values.TypeRef("ConeAdapter"))
		assert.False(t, ok)
	})

	t.Run("ResolvesBackingPlugin", func(t *testing.T) {
		h, ok := provider.ResolveBackingImplementation(cylinder)
		require.True(t, ok)
		assert.Equal(t, "cylinder-adapters", h.Name())
	})

	t.Run("ListsPlugins", func(t *testing.T) {
		handles := provider.Plugins()
		require.Len(t, handles, 1)
		assert.Equal(t, "cylinder-adapters", handles[0].Name())
		assert.Equal(t, "1.0.0", handles[0].Version())
	})
}

func TestProviderActivation(t *testing.T) {
	ctx := context.Background()

	t.Run("ActivatesOnce", func(t *testing.T) {
		host := &fakeHost{}
		graph := typegraph.NewGraph()
		provider := NewProvider(graph,
			WithFS(pluginFS(cylinderManifest, []byte("wasm"))),
			WithModuleHost(host),
			WithLogger(discardLogger()),
		)

		h, ok := provider.ResolveBackingImplementation(values.TypeRef("CylinderAdapter"))
		require.True(t, ok)

		require.NoError(t, provider.Activate(ctx, h))
		require.NoError(t, provider.Activate(ctx, h))
		assert.Equal(t, 1, host.loads)

		factory, ok := provider.PrimAdapterFactory(values.TypeRef("CylinderAdapter"))
		require.True(t, ok)
		adapter, err := factory.New()
		require.NoError(t, err)
		assert.NotNil(t, adapter)
	})

	t.Run("FactoryBeforeActivation", func(t *testing.T) {
		graph := typegraph.NewGraph()
		provider := NewProvider(graph,
			WithFS(pluginFS(cylinderManifest, []byte("wasm"))),
			WithModuleHost(&fakeHost{}),
			WithLogger(discardLogger()),
		)

		factory, ok := provider.PrimAdapterFactory(values.TypeRef("CylinderAdapter"))
		require.True(t, ok)
		_, err := factory.New()
		assert.True(t, errors.Is(err, ErrNotActivated))
	})

	t.Run("LoadFailureIsCached", func(t *testing.T) {
		host := &fakeHost{loadErr: errors.New("bad wasm")}
		graph := typegraph.NewGraph()
		provider := NewProvider(graph,
			WithFS(pluginFS(cylinderManifest, []byte("wasm"))),
			WithModuleHost(host),
			WithLogger(discardLogger()),
		)

		h, _ := provider.ResolveBackingImplementation(values.TypeRef("CylinderAdapter"))
		first := provider.Activate(ctx, h)
		second := provider.Activate(ctx, h)
		require.Error(t, first)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, host.loads)
	})

	t.Run("DigestMismatch", func(t *testing.T) {
		pinned := pluginFS(cylinderManifest, []byte("wasm"))
		pinned["cylinder/plugininfo.yaml"] = &fstest.MapFile{Data: []byte(cylinderManifest +
			"digest: " + FormatDigest([]byte("other")) + "\n")}

		graph := typegraph.NewGraph()
		provider := NewProvider(graph,
			WithFS(pinned),
			WithModuleHost(&fakeHost{}),
			WithLogger(discardLogger()),
		)

		h, _ := provider.ResolveBackingImplementation(values.TypeRef("CylinderAdapter"))
		err := provider.Activate(ctx, h)
		assert.True(t, errors.Is(err, ErrIntegrityCheckFailed))
	})

	t.Run("LockfilePinOverridesManifest", func(t *testing.T) {
		dir := t.TempDir()
		lock := NewLockfile()
		require.NoError(t, lock.Record("cylinder-adapters", PluginLock{
			Resolved: "1.0.0",
			Binary:   "cylinder.wasm",
			Digest:   FormatDigest([]byte("tampered")),
		}))
		lockPath := filepath.Join(dir, DefaultLockfileName)
		require.NoError(t, lock.Save(lockPath))

		graph := typegraph.NewGraph()
		provider := NewProvider(graph,
			WithFS(pluginFS(cylinderManifest, []byte("wasm"))),
			WithLockfilePath(lockPath),
			WithModuleHost(&fakeHost{}),
			WithLogger(discardLogger()),
		)

		h, _ := provider.ResolveBackingImplementation(values.TypeRef("CylinderAdapter"))
		err := provider.Activate(ctx, h)
		assert.True(t, errors.Is(err, ErrIntegrityCheckFailed))
	})

	t.Run("IncompatibleHostAPISkipped", func(t *testing.T) {
		incompatible := cylinderManifest + "hostApi: 9.0.0\n"
		graph := typegraph.NewGraph()
		provider := NewProvider(graph,
			WithFS(pluginFS(incompatible, []byte("wasm"))),
			WithModuleHost(&fakeHost{}),
			WithLogger(discardLogger()),
		)

		_, ok := provider.MetadataFor(values.TypeRef("CylinderAdapter"))
		assert.False(t, ok)
		assert.Empty(t, provider.Plugins())
	})
}

func TestProviderInProcessRegistration(t *testing.T) {
	graph := typegraph.NewGraph()
	provider := NewProvider(graph, WithLogger(discardLogger()))

	factory := ports.PrimAdapterFactoryFunc(func() (ports.PrimAdapter, error) {
		return fakeAdapter{}, nil
	})
	raw := map[string]any{values.MetaPrimTypeName: "Mesh", values.MetaIsInternal: true}
	require.NoError(t, provider.RegisterPrimAdapter(graph, "MeshAdapter", raw, factory))

	t.Run("RegistersUnderPrimBase", func(t *testing.T) {
		assert.Contains(t, graph.AllTypesImplementing(ports.PrimAdapterBase),
			values.TypeRef("MeshAdapter"))
	})

	t.Run("ActivationIsNoOp", func(t *testing.T) {
		h, ok := provider.ResolveBackingImplementation(values.TypeRef("MeshAdapter"))
		require.True(t, ok)
		assert.Equal(t, "builtin", h.Name())
		assert.NoError(t, provider.Activate(context.Background(), h))
	})

	t.Run("FactoryServesWithoutActivation", func(t *testing.T) {
		got, ok := provider.PrimAdapterFactory(values.TypeRef("MeshAdapter"))
		require.True(t, ok)
		adapter, err := got.New()
		require.NoError(t, err)
		assert.NotNil(t, adapter)
	})

	t.Run("DuplicateRejected", func(t *testing.T) {
		err := provider.RegisterPrimAdapter(graph, "MeshAdapter", nil, factory)
		assert.Error(t, err)
	})

	t.Run("APISchemaRegistration", func(t *testing.T) {
		apiFactory := ports.APISchemaAdapterFactoryFunc(func() (ports.APISchemaAdapter, error) {
			return fakeAPIAdapter{}, nil
		})
		require.NoError(t, provider.RegisterAPISchemaAdapter(graph, "CollectionAPIAdapter",
			map[string]any{values.MetaAPISchemaName: "CollectionAPI"}, apiFactory))

		got, ok := provider.APISchemaAdapterFactory(values.TypeRef("CollectionAPIAdapter"))
		require.True(t, ok)
		adapter, err := got.New()
		require.NoError(t, err)
		assert.NotNil(t, adapter)
	})
}

func TestProviderClose(t *testing.T) {
	host := &fakeHost{}
	graph := typegraph.NewGraph()
	provider := NewProvider(graph,
		WithFS(pluginFS(cylinderManifest, []byte("wasm"))),
		WithModuleHost(host),
		WithLogger(discardLogger()),
	)

	h, _ := provider.ResolveBackingImplementation(values.TypeRef("CylinderAdapter"))
	require.NoError(t, provider.Activate(context.Background(), h))
	require.NoError(t, provider.Close(context.Background()))
	assert.True(t, host.module.closed)
}

func TestProviderRootDiscovery(t *testing.T) {
	dir := t.TempDir()
	pluginDir := filepath.Join(dir, "cylinder")
	require.NoError(t, os.MkdirAll(pluginDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "plugininfo.yaml"),
		[]byte(cylinderManifest), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "cylinder.wasm"),
		[]byte("wasm"), 0o600))

	graph := typegraph.NewGraph()
	provider := NewProvider(graph,
		WithRoot(dir),
		WithModuleHost(&fakeHost{}),
		WithLogger(discardLogger()),
	)

	_, ok := provider.MetadataFor(values.TypeRef("CylinderAdapter"))
	assert.True(t, ok)
}
