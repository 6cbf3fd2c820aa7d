package compression

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiwangfds/docuvault/internal/database"
	apperrors "github.com/weiwangfds/docuvault/internal/errors"
)

func compressibleText(size int) []byte {
	line := "the quick brown fox jumps over the lazy dog 0123456789\n"
	return []byte(strings.Repeat(line, size/len(line)+1))[:size]
}

func TestEngineRoundTrip(t *testing.T) {
	e := NewEngine()
	data := compressibleText(256 * 1024)

	cases := []struct {
		alg   database.CompressionAlgorithm
		level int
	}{
		{database.AlgorithmZstd, 3},
		{database.AlgorithmZstd, 9},
		{database.AlgorithmBrotli, 8},
		{database.AlgorithmDeflate, 6},
	}
	for _, tc := range cases {
		t.Run(string(tc.alg), func(t *testing.T) {
			out, ratio, err := e.Compress(data, tc.alg, tc.level)
			require.NoError(t, err)
			assert.Less(t, ratio, 1.0, "repetitive text should shrink")
			assert.Equal(t, float64(len(out))/float64(len(data)), ratio)

			restored, err := e.Decompress(out, tc.alg, int64(len(data)))
			require.NoError(t, err)
			assert.True(t, bytes.Equal(data, restored))
		})
	}
}

func TestEngineRejectsEmptyInput(t *testing.T) {
	e := NewEngine()

	_, _, err := e.Compress(nil, database.AlgorithmZstd, 3)
	require.Error(t, err)
	appErr, ok := apperrors.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCompressionFailed, appErr.Code)
}

func TestEngineRejectsUnknownAlgorithm(t *testing.T) {
	e := NewEngine()

	_, _, err := e.Compress([]byte("data"), database.CompressionAlgorithm("lz4"), 1)
	require.Error(t, err)

	_, err = e.Decompress([]byte("data"), database.CompressionAlgorithm("lz4"), 4)
	require.Error(t, err)
}

func TestEngineDecompressNonePassthrough(t *testing.T) {
	e := NewEngine()
	data := []byte("stored uncompressed")

	out, err := e.Decompress(data, database.AlgorithmNone, int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestEngineDecompressRejectsCorruptPayload(t *testing.T) {
	e := NewEngine()

	_, err := e.Decompress([]byte("not a zstd frame"), database.AlgorithmZstd, 100)
	require.Error(t, err)
	appErr, ok := apperrors.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrDecompressFailed, appErr.Code)
}

func TestEngineDecompressRejectsLengthMismatch(t *testing.T) {
	e := NewEngine()
	data := compressibleText(128 * 1024)

	out, _, err := e.Compress(data, database.AlgorithmZstd, 3)
	require.NoError(t, err)

	_, err = e.Decompress(out, database.AlgorithmZstd, int64(len(data))+1)
	require.Error(t, err)
	appErr, ok := apperrors.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrDecompressFailed, appErr.Code)
}

func TestEngineReusesEncoderPerLevel(t *testing.T) {
	e := NewEngine()
	data := compressibleText(64 * 1024)

	for i := 0; i < 3; i++ {
		_, _, err := e.Compress(data, database.AlgorithmZstd, 3)
		require.NoError(t, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	assert.Len(t, e.zstdWriters, 1)
}
