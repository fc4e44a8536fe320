package sfx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/meigma/sfx/internal/codec"
	"github.com/meigma/sfx/internal/format"
	"github.com/meigma/sfx/internal/sizing"
	"github.com/meigma/sfx/internal/tarstream"
	"github.com/meigma/sfx/metadata"
)

// Reader provides access to the segments of an image.
//
// Open validates the structure up front: the trailer must describe exactly
// size bytes, the magic marker must sit at the recorded offset, and the tag
// must name a known algorithm. The payload itself is only decoded on demand.
type Reader struct {
	src         io.ReaderAt
	layout      Layout
	compression Compression
	cfg         config
}

// Open parses the image held by src, which must be size bytes long.
// Structural problems are reported as errors matching ErrFormat.
func Open(src io.ReaderAt, size int64, opts ...Option) (*Reader, error) {
	cfg := newConfig(opts)
	if size < format.TrailerSize {
		return nil, fmt.Errorf("%w: image is %d bytes, too short for a trailer", ErrFormat, size)
	}

	raw := make([]byte, format.TrailerSize)
	if err := readAt(src, raw, size-format.TrailerSize); err != nil {
		return nil, fmt.Errorf("%w: read trailer: %w", ErrIO, err)
	}
	trailer, err := format.ParseTrailer(raw)
	if err != nil {
		return nil, err
	}
	layout, err := format.Locate(trailer, size)
	if err != nil {
		return nil, err
	}

	header := make([]byte, format.MagicSize+format.TagSize)
	magicOff, err := sizing.ToInt64(layout.MagicOffset, ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	if err := readAt(src, header, magicOff); err != nil {
		return nil, fmt.Errorf("%w: read header at offset %d: %w", ErrIO, layout.MagicOffset, err)
	}
	if err := format.CheckMagic(header, layout.MagicOffset); err != nil {
		return nil, err
	}
	var tag codec.Tag
	copy(tag[:], header[format.MagicSize:])
	alg, err := codec.ParseTag(tag)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if layout.MetadataSize > format.MaxMetadataSize {
		return nil, fmt.Errorf("%w: metadata segment of %d bytes exceeds limit %d", ErrFormat, layout.MetadataSize, format.MaxMetadataSize)
	}

	cfg.log().Debug("opened image",
		"size", size,
		"magic_offset", layout.MagicOffset,
		"compression", alg.String(),
		"blob_size", layout.BlobSize)

	return &Reader{src: src, layout: layout, compression: alg, cfg: cfg}, nil
}

// Layout returns the offsets and sizes of every segment.
func (r *Reader) Layout() Layout {
	return r.layout
}

// Compression returns the payload compression algorithm named by the tag.
func (r *Reader) Compression() Compression {
	return r.compression
}

// Bootstrap returns a reader over the bootstrap executable bytes.
func (r *Reader) Bootstrap() *io.SectionReader {
	return r.section(0, r.layout.BootstrapSize)
}

// Blob returns a reader over the compressed payload.
func (r *Reader) Blob() *io.SectionReader {
	return r.section(r.layout.BlobOffset, r.layout.BlobSize)
}

// MetadataBytes returns the standalone metadata segment.
func (r *Reader) MetadataBytes() ([]byte, error) {
	off, err := sizing.ToInt64(r.layout.MetadataOffset, ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, r.layout.MetadataSize)
	if err := readAt(r.src, buf, off); err != nil {
		return nil, fmt.Errorf("%w: read metadata: %w", ErrIO, err)
	}
	return buf, nil
}

// Metadata parses the standalone metadata segment. This copy is
// authoritative; the inline metadata.toml inside the payload is optional.
func (r *Reader) Metadata() (metadata.Record, error) {
	raw, err := r.MetadataBytes()
	if err != nil {
		return metadata.Record{}, err
	}
	rec, err := metadata.Parse(raw)
	if err != nil {
		return metadata.Record{}, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return rec, nil
}

// Payload returns the decompressed tar stream. The caller must close it.
func (r *Reader) Payload() (io.ReadCloser, error) {
	return codec.NewReader(r.compression, r.Blob())
}

// Walk decodes the payload and calls fn for each entry in archive order.
// The content reader is valid only until fn returns. Entries with unsafe
// paths abort the walk before fn sees them.
func (r *Reader) Walk(ctx context.Context, fn func(EntryInfo, io.Reader) error) error {
	payload, err := r.Payload()
	if err != nil {
		return err
	}
	defer payload.Close()

	return tarstream.Scan(payload, func(h EntryInfo, content io.Reader) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(h, content)
	})
}

// Entries returns every entry header in archive order.
func (r *Reader) Entries(ctx context.Context) ([]EntryInfo, error) {
	var out []EntryInfo
	err := r.Walk(ctx, func(h EntryInfo, _ io.Reader) error {
		out = append(out, h)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Report summarizes a verified image.
type Report struct {
	Stats

	// InlineMetadata reports whether the payload carries metadata.toml.
	InlineMetadata bool
}

// Verify decodes the whole payload and checks it.
//
// It reads every entry's content, drains the compressed stream so codec
// checksums are validated, parses the standalone metadata, and, when the
// payload carries metadata.toml, requires it to match the standalone copy
// byte for byte.
func (r *Reader) Verify(ctx context.Context) (Report, error) {
	standalone, err := r.MetadataBytes()
	if err != nil {
		return Report{}, err
	}
	if _, err := metadata.Parse(standalone); err != nil {
		return Report{}, fmt.Errorf("%w: %w", ErrFormat, err)
	}

	payload, err := r.Payload()
	if err != nil {
		return Report{}, err
	}
	defer payload.Close()

	var rep Report
	err = tarstream.Scan(payload, func(h EntryInfo, content io.Reader) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rep.Entries++
		if h.Kind == EntryDir {
			return nil
		}
		rep.Files++
		if h.Path == metadata.FileName {
			return r.checkInlineMetadata(&rep, content, standalone)
		}
		n, err := io.Copy(io.Discard, content)
		if err != nil {
			return fmt.Errorf("%w: read %s: %w", ErrDecompression, h.Path, err)
		}
		rep.ContentBytes += uint64(n) //nolint:gosec // io.Copy counts are non-negative
		r.cfg.report(ProgressEvent{Stage: StageVerifying, Path: h.Path, BytesDone: rep.ContentBytes, EntriesDone: rep.Entries})
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	if _, err := io.Copy(io.Discard, payload); err != nil {
		return Report{}, fmt.Errorf("%w: drain payload: %w", ErrDecompression, err)
	}

	r.cfg.log().Info("image verified",
		"entries", rep.Entries,
		"files", rep.Files,
		"content_bytes", rep.ContentBytes,
		"inline_metadata", rep.InlineMetadata)
	return rep, nil
}

func (r *Reader) checkInlineMetadata(rep *Report, content io.Reader, standalone []byte) error {
	inline, err := io.ReadAll(io.LimitReader(content, format.MaxMetadataSize+1))
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrDecompression, metadata.FileName, err)
	}
	if !bytes.Equal(inline, standalone) {
		return fmt.Errorf("%w: inline %s differs from standalone metadata", ErrFormat, metadata.FileName)
	}
	rep.InlineMetadata = true
	rep.ContentBytes += uint64(len(inline))
	return nil
}

func (r *Reader) section(off, n uint64) *io.SectionReader {
	return io.NewSectionReader(r.src, int64(off), int64(n)) //nolint:gosec // bounded by size
}

// File is a Reader backed by an open file.
type File struct {
	*Reader
	f *os.File
}

// OpenFile opens the image at path.
func OpenFile(path string, opts ...Option) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open image: %w", ErrIO, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat image: %w", ErrIO, err)
	}
	r, err := Open(f, info.Size(), opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &File{Reader: r, f: f}, nil
}

// Close closes the underlying file.
func (f *File) Close() error {
	return f.f.Close()
}

// readAt fills buf from src at off.
func readAt(src io.ReaderAt, buf []byte, off int64) error {
	_, err := io.ReadFull(io.NewSectionReader(src, off, int64(len(buf))), buf)
	return err
}
