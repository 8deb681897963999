// Package compression provides the codecs used for stored and on-disk templates.
//
// Template files may carry a compression suffix after their format extension, for
// example "ship.json.zst" or "ship.yaml.lz4". ForExtension maps such a suffix to an
// Algorithm, and Get returns a shared, concurrency-safe Compressor for it.
//
//	comp, err := compression.Get(compression.Zstd)
//	blob, err := comp.Compress(raw)
//	raw, err = comp.Decompress(blob)
package compression

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/prefabpool/pkg/errors"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents snappy block compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 block compression (Snappy compatible)
	S2 Algorithm = "s2"
)

// Level controls the trade-off between speed and ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Best maximizes compression ratio.
	Best Level = 9
)

// Compressor compresses and decompresses whole buffers. Implementations are safe for
// concurrent use.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Algorithm() Algorithm
}

var extensions = map[string]Algorithm{
	".gz":  Gzip,
	".sz":  Snappy,
	".lz4": LZ4,
	".zst": Zstd,
	".s2":  S2,
}

// ForExtension returns the algorithm for a compression suffix such as ".zst".
func ForExtension(ext string) (Algorithm, bool) {
	a, ok := extensions[strings.ToLower(ext)]
	return a, ok
}

// Extension returns the file suffix for a, or "" for None.
func Extension(a Algorithm) string {
	for ext, alg := range extensions {
		if alg == a {
			return ext
		}
	}
	return ""
}

// Extensions lists every recognised compression suffix.
func Extensions() []string {
	out := make([]string, 0, len(extensions))
	for ext := range extensions {
		out = append(out, ext)
	}
	return out
}

var (
	sharedMu sync.Mutex
	shared   = map[Algorithm]Compressor{}
)

// Get returns a process-wide compressor for a at the Default level.
func Get(a Algorithm) (Compressor, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if c, ok := shared[a]; ok {
		return c, nil
	}
	c, err := New(a, Default)
	if err != nil {
		return nil, err
	}
	shared[a] = c
	return c, nil
}

// New creates a compressor for a at the given level.
func New(a Algorithm, level Level) (Compressor, error) {
	switch a {
	case None, "":
		return noneCompressor{}, nil
	case Gzip:
		return newGzipCompressor(level), nil
	case Snappy:
		return blockCompressor{alg: Snappy, encode: snappy.Encode, decode: snappy.Decode}, nil
	case S2:
		return blockCompressor{alg: S2, encode: s2.Encode, decode: s2.Decode}, nil
	case LZ4:
		return &lz4Compressor{level: mapLZ4Level(level)}, nil
	case Zstd:
		return newZstdCompressor(level)
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm: %s", a)
	}
}

type noneCompressor struct{}

func (noneCompressor) Compress(data []byte) ([]byte, error)   { return data, nil }
func (noneCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }
func (noneCompressor) Algorithm() Algorithm                   { return None }

// blockCompressor covers the snappy-family block formats.
type blockCompressor struct {
	alg    Algorithm
	encode func(dst, src []byte) []byte
	decode func(dst, src []byte) ([]byte, error)
}

func (b blockCompressor) Compress(data []byte) ([]byte, error) { return b.encode(nil, data), nil }
func (b blockCompressor) Decompress(data []byte) ([]byte, error) {
	out, err := b.decode(nil, data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, string(b.alg)+" decode failed")
	}
	return out, nil
}
func (b blockCompressor) Algorithm() Algorithm { return b.alg }

type gzipCompressor struct {
	writers sync.Pool
}

func newGzipCompressor(level Level) *gzipCompressor {
	gl := gzip.DefaultCompression
	switch level {
	case Fastest:
		gl = gzip.BestSpeed
	case Best:
		gl = gzip.BestCompression
	}
	gc := &gzipCompressor{}
	gc.writers.New = func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, gl)
		return w
	}
	return gc
}

func (gc *gzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gc.writers.Get().(*gzip.Writer)
	defer gc.writers.Put(w)

	w.Reset(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gc *gzipCompressor) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "gzip header")
	}
	defer r.Close()
	return readAll(r)
}

func (gc *gzipCompressor) Algorithm() Algorithm { return Gzip }

type lz4Compressor struct {
	level lz4.CompressionLevel
}

func (lc *lz4Compressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(lc.level)); err != nil {
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

func (lc *lz4Compressor) Decompress(data []byte) ([]byte, error) {
	return readAll(lz4.NewReader(bytes.NewReader(data)))
}

func (lc *lz4Compressor) Algorithm() Algorithm { return LZ4 }

// zstdCompressor shares one encoder and one decoder; EncodeAll and DecodeAll are safe
// for concurrent use.
type zstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCompressor(level Level) (*zstdCompressor, error) {
	zl := zstd.SpeedDefault
	switch level {
	case Fastest:
		zl = zstd.SpeedFastest
	case Best:
		zl = zstd.SpeedBestCompression
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zl))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "zstd encoder")
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "zstd decoder")
	}
	return &zstdCompressor{enc: enc, dec: dec}, nil
}

func (zc *zstdCompressor) Compress(data []byte) ([]byte, error) {
	return zc.enc.EncodeAll(data, nil), nil
}

func (zc *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	out, err := zc.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "zstd decode failed")
	}
	return out, nil
}

func (zc *zstdCompressor) Algorithm() Algorithm { return Zstd }

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func readAll(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil { //nolint:gosec // template files are trusted local assets
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "decompress")
	}
	return buf.Bytes(), nil
}
