package oci

import (
	"context"
	"fmt"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/sigstore/cosign/v2/pkg/cosign"
	ociremote "github.com/sigstore/cosign/v2/pkg/oci/remote"
	sigs "github.com/sigstore/cosign/v2/pkg/signature"
)

// CosignVerifier checks bundle signatures with cosign before a bundle is
// installed.
type CosignVerifier struct {
	keyRef     string
	ignoreTlog bool
}

// VerifierOption configures a CosignVerifier.
type VerifierOption func(*CosignVerifier)

// WithIgnoreTlog disables transparency log verification. Intended for air
// gapped registries.
func WithIgnoreTlog(ignore bool) VerifierOption {
	return func(v *CosignVerifier) { v.ignoreTlog = ignore }
}

// NewCosignVerifier creates a verifier bound to a public key reference. The
// key reference accepts the forms cosign does: a file path, a KMS URI, or a
// Kubernetes secret.
func NewCosignVerifier(keyRef string, opts ...VerifierOption) *CosignVerifier {
	v := &CosignVerifier{keyRef: keyRef}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks that at least one valid signature exists for reference.
func (v *CosignVerifier) Verify(ctx context.Context, reference string) error {
	ref, err := name.ParseReference(reference)
	if err != nil {
		return fmt.Errorf("parsing reference %q: %w", reference, err)
	}

	verifier, err := sigs.PublicKeyFromKeyRef(ctx, v.keyRef)
	if err != nil {
		return fmt.Errorf("loading public key %q: %w", v.keyRef, err)
	}

	opts := &cosign.CheckOpts{
		SigVerifier:        verifier,
		IgnoreTlog:         v.ignoreTlog,
		RegistryClientOpts: []ociremote.Option{ociremote.WithRemoteOptions()},
	}

	checked, _, err := cosign.VerifyImageSignatures(ctx, ref, opts)
	if err != nil {
		return fmt.Errorf("signature verification failed for %q: %w", reference, err)
	}
	if len(checked) == 0 {
		return fmt.Errorf("no valid signatures for %q", reference)
	}
	return nil
}
