package plugin

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDigest(t *testing.T) {
	digest := FormatDigest([]byte("hello"))

	assert.True(t, strings.HasPrefix(digest, "sha256:"))
	assert.Len(t, strings.TrimPrefix(digest, "sha256:"), 64)

	// Same content, same digest.
	assert.Equal(t, digest, FormatDigest([]byte("hello")))
	assert.NotEqual(t, digest, FormatDigest([]byte("world")))
}

func TestVerifyDigest(t *testing.T) {
	data := []byte("plugin binary contents")

	t.Run("Match", func(t *testing.T) {
		require.NoError(t, VerifyDigest(data, FormatDigest(data)))
	})

	t.Run("Mismatch", func(t *testing.T) {
		err := VerifyDigest(data, FormatDigest([]byte("other contents")))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrIntegrityCheckFailed))

		var integrityErr *IntegrityError
		require.True(t, errors.As(err, &integrityErr))
		assert.Equal(t, FormatDigest(data), integrityErr.Actual)
	})

	t.Run("InvalidFormat", func(t *testing.T) {
		err := VerifyDigest(data, "not-a-digest")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrIntegrityCheckFailed))
	})

	t.Run("UnsupportedAlgorithm", func(t *testing.T) {
		err := VerifyDigest(data, "md5:abcdef")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported digest algorithm")
	})
}
