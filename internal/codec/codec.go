// Package codec dispatches payload compression on the 4-byte algorithm tag.
//
// The tag is stored in the image next to the compressed blob, so a reader
// never has to guess: it parses the tag and asks for the matching decoder.
// Adding an algorithm means adding a Tag and a codec; existing images keep
// their tag and decode unchanged.
package codec

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"

	"github.com/meigma/sfx/internal/errdef"
)

// Algorithm identifies the compression scheme of an image payload.
type Algorithm uint8

const (
	AlgorithmNone Algorithm = iota
	AlgorithmLZMA
	AlgorithmZstd
	AlgorithmLZ4
	AlgorithmGzip
)

// Tag is the on-disk identifier of an Algorithm.
type Tag [4]byte

// String returns the tag as text, quoting non-printable bytes.
func (t Tag) String() string {
	for _, c := range t {
		if c < 0x20 || c > 0x7e {
			return fmt.Sprintf("%q", string(t[:]))
		}
	}
	return string(t[:])
}

var tags = map[Algorithm]Tag{
	AlgorithmNone: {'N', 'O', 'N', 'E'},
	AlgorithmLZMA: {'L', 'Z', 'M', 'A'},
	AlgorithmZstd: {'Z', 'S', 'T', 'D'},
	AlgorithmLZ4:  {'L', 'Z', '4', 'F'},
	AlgorithmGzip: {'G', 'Z', 'I', 'P'},
}

// Tag returns the on-disk tag for a.
func (a Algorithm) Tag() Tag {
	return tags[a]
}

// Valid reports whether a has a registered codec.
func (a Algorithm) Valid() bool {
	_, ok := tags[a]
	return ok
}

// String returns the human-readable name of the algorithm.
func (a Algorithm) String() string {
	switch a {
	case AlgorithmNone:
		return "none"
	case AlgorithmLZMA:
		return "lzma"
	case AlgorithmZstd:
		return "zstd"
	case AlgorithmLZ4:
		return "lz4"
	case AlgorithmGzip:
		return "gzip"
	default:
		return "unknown"
	}
}

// Algorithms lists every supported algorithm in tag order.
func Algorithms() []Algorithm {
	return []Algorithm{AlgorithmNone, AlgorithmLZMA, AlgorithmZstd, AlgorithmLZ4, AlgorithmGzip}
}

// ParseTag returns the algorithm stored under tag.
func ParseTag(tag Tag) (Algorithm, error) {
	for a, t := range tags {
		if t == tag {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: tag %s", errdef.ErrUnknownAlgorithm, tag)
}

// ParseName returns the algorithm with the given String name.
func ParseName(name string) (Algorithm, error) {
	for _, a := range Algorithms() {
		if a.String() == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", errdef.ErrUnknownAlgorithm, name)
}

// Level selects a speed/ratio trade-off, mapped onto each algorithm's own scale.
type Level int8

const (
	LevelDefault Level = iota
	LevelFastest
	LevelBest
)

// String returns the human-readable name of the level.
func (l Level) String() string {
	switch l {
	case LevelDefault:
		return "default"
	case LevelFastest:
		return "fastest"
	case LevelBest:
		return "best"
	default:
		return "unknown"
	}
}

// ParseLevel returns the level with the given String name.
func ParseLevel(name string) (Level, error) {
	for _, l := range []Level{LevelDefault, LevelFastest, LevelBest} {
		if l.String() == name {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown compression level %q", name)
}

// NewWriter returns a writer that compresses into w. The stream is complete
// only after Close returns nil.
func NewWriter(a Algorithm, level Level, w io.Writer) (io.WriteCloser, error) {
	var (
		wc  io.WriteCloser
		err error
	)
	switch a {
	case AlgorithmNone:
		wc = nopWriteCloser{w}
	case AlgorithmLZMA:
		wc, err = xzConfig(level).NewWriter(w)
	case AlgorithmZstd:
		wc, err = zstd.NewWriter(w, zstd.WithEncoderLevel(zstdLevel(level)), zstd.WithEncoderConcurrency(1))
	case AlgorithmLZ4:
		zw := lz4.NewWriter(w)
		err = zw.Apply(lz4.CompressionLevelOption(lz4Level(level)))
		wc = zw
	case AlgorithmGzip:
		wc, err = gzip.NewWriterLevel(w, gzipLevel(level))
	default:
		return nil, fmt.Errorf("%w: %d", errdef.ErrUnknownAlgorithm, a)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: create %s encoder: %w", errdef.ErrCompression, a, err)
	}
	return wc, nil
}

// Compress returns src compressed with a at the given level.
func Compress(a Algorithm, level Level, src []byte) ([]byte, error) {
	var buf bytes.Buffer
	wc, err := NewWriter(a, level, &buf)
	if err != nil {
		return nil, err
	}
	if _, err := wc.Write(src); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errdef.ErrCompression, a, err)
	}
	if err := wc.Close(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errdef.ErrCompression, a, err)
	}
	return buf.Bytes(), nil
}

// NewReader returns a reader that decompresses r according to a. Once it
// has returned io.EOF, every further Read returns io.EOF as well.
func NewReader(a Algorithm, r io.Reader) (io.ReadCloser, error) {
	rc, err := newReader(a, r)
	if err != nil {
		return nil, err
	}
	return &stickyEOFReader{ReadCloser: rc}, nil
}

func newReader(a Algorithm, r io.Reader) (io.ReadCloser, error) {
	switch a {
	case AlgorithmNone:
		return io.NopCloser(r), nil
	case AlgorithmLZMA:
		return newLZMAReader(r)
	case AlgorithmZstd:
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errdef.ErrDecompression, err)
		}
		return dec.IOReadCloser(), nil
	case AlgorithmLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case AlgorithmGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errdef.ErrDecompression, err)
		}
		return zr, nil
	default:
		return nil, fmt.Errorf("%w: %d", errdef.ErrUnknownAlgorithm, a)
	}
}

// Decompress returns the decoded form of src.
func Decompress(a Algorithm, src []byte) ([]byte, error) {
	rc, err := NewReader(a, bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	out, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errdef.ErrDecompression, a, err)
	}
	return out, nil
}

var xzMagic = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}

// newLZMAReader accepts both xz streams and legacy .lzma streams under the
// LZMA tag, matching what an auto-detecting liblzma decoder would read.
func newLZMAReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(xzMagic))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %w", errdef.ErrDecompression, err)
	}
	if bytes.Equal(head, xzMagic) {
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errdef.ErrDecompression, err)
		}
		return io.NopCloser(xr), nil
	}
	if err := checkLegacyHeader(head); err != nil {
		return nil, err
	}
	lr, err := lzma.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errdef.ErrDecompression, err)
	}
	return io.NopCloser(lr), nil
}

// maxLegacyDictCap bounds the dictionary a legacy .lzma header may request,
// since the decoder allocates it up front.
const maxLegacyDictCap = 256 << 20

// checkLegacyHeader validates the properties byte and dictionary size of a
// legacy .lzma header before any allocation happens.
func checkLegacyHeader(head []byte) error {
	if len(head) < 5 {
		return fmt.Errorf("%w: lzma header truncated", errdef.ErrDecompression)
	}
	if head[0] >= 9*5*5 {
		return fmt.Errorf("%w: invalid lzma properties 0x%02x", errdef.ErrDecompression, head[0])
	}
	dictCap := uint32(head[1]) | uint32(head[2])<<8 | uint32(head[3])<<16 | uint32(head[4])<<24
	if dictCap > maxLegacyDictCap {
		return fmt.Errorf("%w: lzma dictionary of %d bytes exceeds limit", errdef.ErrDecompression, dictCap)
	}
	return nil
}

func xzConfig(level Level) xz.WriterConfig {
	switch level {
	case LevelFastest:
		return xz.WriterConfig{DictCap: 1 << 20}
	case LevelBest:
		return xz.WriterConfig{DictCap: 64 << 20}
	default:
		return xz.WriterConfig{}
	}
}

func zstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case LevelFastest:
		return zstd.SpeedFastest
	case LevelBest:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func lz4Level(level Level) lz4.CompressionLevel {
	switch level {
	case LevelFastest:
		return lz4.Fast
	case LevelBest:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func gzipLevel(level Level) int {
	switch level {
	case LevelFastest:
		return gzip.BestSpeed
	case LevelBest:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// stickyEOFReader keeps returning io.EOF once the decoder has reported it.
// The lz4 frame reader fails on reads past the end of its stream.
type stickyEOFReader struct {
	io.ReadCloser
	eof bool
}

func (s *stickyEOFReader) Read(p []byte) (int, error) {
	if s.eof {
		return 0, io.EOF
	}
	n, err := s.ReadCloser.Read(p)
	if errors.Is(err, io.EOF) {
		s.eof = true
	}
	return n, err
}
