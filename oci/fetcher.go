package oci

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/memory"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"

	"github.com/scenewire/imaging-host-sdk/manifest"
	"github.com/scenewire/imaging-host-sdk/netutil"
	"github.com/scenewire/imaging-host-sdk/plugin"
)

// Layer media types for adapter plugin bundles.
const (
	WASMLayerMediaType     = "application/vnd.scenewire.adapter.wasm.v1"
	ManifestLayerMediaType = "application/vnd.scenewire.adapter.manifest.v1+json"
)

// Bundle is one pulled adapter plugin: its manifest and the wasm binary the
// manifest's binary field names.
type Bundle struct {
	Manifest *manifest.Manifest
	WASM     []byte
	// Digest is the canonical sha256 digest of the wasm layer.
	Digest string
}

// BundleFetcher pulls adapter plugin bundles from an OCI registry using
// oras-go.
type BundleFetcher struct {
	auth     AuthProvider
	verifier *CosignVerifier
	client   *http.Client
}

// FetcherOption configures a BundleFetcher.
type FetcherOption func(*BundleFetcher)

// WithAuthProvider sets the credential source for registry access.
func WithAuthProvider(p AuthProvider) FetcherOption {
	return func(f *BundleFetcher) { f.auth = p }
}

// WithVerifier enables cosign signature verification before a bundle is
// accepted.
func WithVerifier(v *CosignVerifier) FetcherOption {
	return func(f *BundleFetcher) { f.verifier = v }
}

// WithHTTPClient overrides the HTTP client used for registry requests.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *BundleFetcher) { f.client = c }
}

// NewBundleFetcher creates a fetcher. By default it reads credentials from
// the environment and retries transient registry failures.
func NewBundleFetcher(opts ...FetcherOption) *BundleFetcher {
	f := &BundleFetcher{
		auth: NewEnvAuthProvider(),
		client: &http.Client{
			Transport: &netutil.RetryTransport{},
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Pull downloads the bundle at reference ("registry/repo") and tag. When a
// verifier is configured, the signature is checked before any layer is
// trusted.
func (f *BundleFetcher) Pull(ctx context.Context, reference, tag string) (*Bundle, error) {
	if f.verifier != nil {
		if err := f.verifier.Verify(ctx, reference+":"+tag); err != nil {
			return nil, fmt.Errorf("verifying bundle signature: %w", err)
		}
	}

	repo, err := remote.NewRepository(reference)
	if err != nil {
		return nil, fmt.Errorf("create repository: %w", err)
	}
	repo.Client = f.authClient(ctx, repo.Reference.Registry)

	store := memory.New()
	manifestDesc, err := oras.Copy(ctx, repo, tag, store, tag, oras.DefaultCopyOptions)
	if err != nil {
		return nil, fmt.Errorf("pull bundle: %w", err)
	}

	ociManifest, err := fetchOCIManifest(ctx, store, manifestDesc)
	if err != nil {
		return nil, err
	}

	manifestLayer, err := findLayer(ociManifest, ManifestLayerMediaType)
	if err != nil {
		return nil, err
	}
	manifestBytes, err := fetchLayer(ctx, store, manifestLayer)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest layer: %w", err)
	}

	var m manifest.Manifest
	if err := json.Unmarshal(manifestBytes, &m); err != nil {
		return nil, fmt.Errorf("invalid plugin manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plugin manifest: %w", err)
	}

	wasmLayer, err := findLayer(ociManifest, WASMLayerMediaType)
	if err != nil {
		return nil, err
	}
	wasmBytes, err := fetchLayer(ctx, store, wasmLayer)
	if err != nil {
		return nil, fmt.Errorf("fetch wasm layer: %w", err)
	}

	return &Bundle{
		Manifest: &m,
		WASM:     wasmBytes,
		Digest:   plugin.FormatDigest(wasmBytes),
	}, nil
}

// Install writes a pulled bundle under root so the plugin provider's next
// scan discovers it, and records the pin in the lockfile next to it.
func (f *BundleFetcher) Install(ctx context.Context, bundle *Bundle, root string) error {
	dir := filepath.Join(root, bundle.Manifest.Name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating plugin directory: %w", err)
	}

	binary := bundle.Manifest.Binary
	if binary == "" {
		binary = bundle.Manifest.Name + ".wasm"
		bundle.Manifest.Binary = binary
	}
	if err := os.WriteFile(filepath.Join(dir, binary), bundle.WASM, 0o600); err != nil {
		return fmt.Errorf("writing plugin binary: %w", err)
	}

	manifestBytes, err := json.MarshalIndent(bundle.Manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding plugin manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "plugininfo.json"), manifestBytes, 0o600); err != nil {
		return fmt.Errorf("writing plugin manifest: %w", err)
	}

	return f.recordLock(bundle, root)
}

func (f *BundleFetcher) recordLock(bundle *Bundle, root string) error {
	lockPath := filepath.Join(root, plugin.DefaultLockfileName)
	lock, err := plugin.LoadLockfile(lockPath)
	if err != nil {
		return err
	}
	if lock == nil {
		lock = plugin.NewLockfile()
	}

	err = lock.Record(bundle.Manifest.Name, plugin.PluginLock{
		Resolved: bundle.Manifest.Version,
		Binary:   bundle.Manifest.Binary,
		Digest:   bundle.Digest,
	})
	if err != nil {
		return err
	}
	return lock.Save(lockPath)
}

func (f *BundleFetcher) authClient(ctx context.Context, registry string) *auth.Client {
	client := &auth.Client{
		Client: f.client,
		Cache:  auth.NewCache(),
	}

	username, password, err := f.auth.Credentials(ctx, registry)
	if err == nil && username != "" {
		client.Credential = auth.StaticCredential(registry, auth.Credential{
			Username: username,
			Password: password,
		})
	}
	return client
}

func fetchOCIManifest(ctx context.Context, store *memory.Store, desc ocispec.Descriptor) (*ocispec.Manifest, error) {
	data, err := fetchLayer(ctx, store, desc)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}

	var m ocispec.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest JSON: %w", err)
	}
	return &m, nil
}

func fetchLayer(ctx context.Context, store *memory.Store, desc ocispec.Descriptor) ([]byte, error) {
	rc, err := store.Fetch(ctx, desc)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rc.Close()
	}()
	return io.ReadAll(rc)
}

func findLayer(m *ocispec.Manifest, mediaType string) (ocispec.Descriptor, error) {
	for _, layer := range m.Layers {
		if layer.MediaType == mediaType {
			return layer, nil
		}
	}
	return ocispec.Descriptor{}, fmt.Errorf("no %s layer found", mediaType)
}
