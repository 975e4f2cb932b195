package plugin

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// FormatDigest computes the canonical "sha256:<hex>" digest of data.
func FormatDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// VerifyDigest validates that data matches an expected digest string. Only
// sha256 is accepted.
func VerifyDigest(data []byte, expected string) error {
	algorithm, _, found := strings.Cut(expected, ":")
	if !found {
		return fmt.Errorf("invalid digest format: %s", expected)
	}
	if algorithm != "sha256" {
		return fmt.Errorf("unsupported digest algorithm: %s", algorithm)
	}

	actual := FormatDigest(data)
	if actual != expected {
		return &IntegrityError{Expected: expected, Actual: actual}
	}
	return nil
}
