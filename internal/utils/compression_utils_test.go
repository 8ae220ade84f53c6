package utils

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDecompressResponse_Gzip verifies gzip payloads round-trip.
func TestDecompressResponse_Gzip(t *testing.T) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte("hello gzip"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	out, err := DecompressResponse("gzip", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "hello gzip", string(out))
}

// TestDecompressResponse_Deflate verifies zlib-framed deflate payloads
// round-trip.
func TestDecompressResponse_Deflate(t *testing.T) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write([]byte("hello deflate"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	out, err := DecompressResponse("deflate", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "hello deflate", string(out))
}

// TestDecompressResponse_Zstd verifies zstd payloads round-trip.
func TestDecompressResponse_Zstd(t *testing.T) {
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write([]byte("hello zstd"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	out, err := DecompressResponse("zstd", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "hello zstd", string(out))
}

// TestDecompressResponse_Fallbacks verifies unknown encodings and corrupt
// payloads fall back to the original bytes.
func TestDecompressResponse_Fallbacks(t *testing.T) {
	data := []byte("raw body")

	out, err := DecompressResponse("", data)
	require.NoError(t, err)
	assert.Equal(t, data, out)

	out, err = DecompressResponse("identity", data)
	require.NoError(t, err)
	assert.Equal(t, data, out)

	out, err = DecompressResponse("gzip", []byte("not gzip"))
	require.NoError(t, err)
	assert.Equal(t, []byte("not gzip"), out)

	out, err = DecompressResponse("gzip", nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
