package compression

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"

	"github.com/weiwangfds/docuvault/internal/database"
	apperrors "github.com/weiwangfds/docuvault/internal/errors"
)

// Engine executes compression and decompression over in-memory buffers.
// It performs no I/O of its own, which keeps it unit-testable without a
// file system.
//
// Zstd encoders are cached per level because constructing one is expensive
// (internal state tables); the decoder is a single shared instance, safe for
// concurrent use.
type Engine struct {
	mu          sync.Mutex
	zstdWriters map[int]*zstd.Encoder
	zstdReader  *zstd.Decoder
}

// NewEngine creates a compression engine.
func NewEngine() *Engine {
	decoder, _ := zstd.NewReader(nil)
	return &Engine{
		zstdWriters: make(map[int]*zstd.Encoder),
		zstdReader:  decoder,
	}
}

// Compress compresses data with the given algorithm and level. It returns the
// compressed bytes and the achieved ratio (compressed/original; lower is
// better).
func (e *Engine) Compress(data []byte, alg database.CompressionAlgorithm, level int) ([]byte, float64, error) {
	if len(data) == 0 {
		return nil, 0, apperrors.NewWithDetails(apperrors.ErrCompressionFailed, "empty input")
	}

	var (
		out []byte
		err error
	)
	switch alg {
	case database.AlgorithmZstd:
		out, err = e.compressZstd(data, level)
	case database.AlgorithmBrotli:
		out, err = compressBrotli(data, level)
	case database.AlgorithmDeflate:
		out, err = compressDeflate(data, level)
	default:
		return nil, 0, apperrors.NewWithDetails(apperrors.ErrCompressionFailed,
			fmt.Sprintf("unsupported algorithm: %s", alg))
	}
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.ErrCompressionFailed, err)
	}

	ratio := float64(len(out)) / float64(len(data))
	return out, ratio, nil
}

// Decompress restores the original bytes. It fails with an integrity error if
// the codec rejects the input or the output length does not match the
// recorded original size.
func (e *Engine) Decompress(data []byte, alg database.CompressionAlgorithm, originalSize int64) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch alg {
	case database.AlgorithmNone:
		out = data
	case database.AlgorithmZstd:
		out, err = e.zstdReader.DecodeAll(data, nil)
	case database.AlgorithmBrotli:
		out, err = io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	case database.AlgorithmDeflate:
		out, err = decompressDeflate(data)
	default:
		return nil, apperrors.NewWithDetails(apperrors.ErrDecompressFailed,
			fmt.Sprintf("unsupported algorithm: %s", alg))
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDecompressFailed, err)
	}

	if int64(len(out)) != originalSize {
		return nil, apperrors.NewWithDetails(apperrors.ErrDecompressFailed,
			fmt.Sprintf("length mismatch: got %d bytes, recorded original size %d", len(out), originalSize))
	}
	return out, nil
}

func (e *Engine) compressZstd(data []byte, level int) ([]byte, error) {
	enc, err := e.zstdEncoder(level)
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(data, nil), nil
}

func (e *Engine) zstdEncoder(level int) (*zstd.Encoder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if enc, ok := e.zstdWriters[level]; ok {
		return enc, nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, err
	}
	e.zstdWriters[level] = enc
	return enc, nil
}

func compressBrotli(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, level)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func compressDeflate(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressDeflate(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	return io.ReadAll(r)
}
