package sfx

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/meigma/sfx/internal/codec"
	"github.com/meigma/sfx/internal/format"
	"github.com/meigma/sfx/internal/tarstream"
	"github.com/meigma/sfx/metadata"
)

// MetadataEntry returns the inline metadata.toml entry for rec, stamped with
// modTime. Passing it as the last entry to Assemble together with
// WithInlineMetadata(false), and without sorting, yields the same archive as
// the default path.
func MetadataEntry(rec metadata.Record, modTime time.Time) Entry {
	return tarstream.Bytes(metadata.FileName, metadata.Encode(rec), modTime)
}

// Assemble builds an image from bootstrap, entries, and rec.
//
// The entries are encoded as a tar stream, followed by metadata.toml unless
// WithInlineMetadata(false) is set, and compressed straight into the image
// buffer. The metadata record is then appended on its own so a reader can get
// it without decompressing the payload, and the trailer is written last.
//
// Assemble never returns a partial image: any failure discards the buffer.
// Entry content is read exactly once; a file whose size differs from its
// entry fails the build.
func Assemble(ctx context.Context, bootstrap []byte, entries []Entry, rec metadata.Record, opts ...Option) (*Image, error) {
	cfg := newConfig(opts)
	if !cfg.compression.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAlgorithm, cfg.compression)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta := metadata.Encode(rec)
	if len(meta) > format.MaxMetadataSize {
		return nil, fmt.Errorf("%w: metadata record is %d bytes, limit %d", ErrSizeOverflow, len(meta), format.MaxMetadataSize)
	}

	entries = prepareEntries(&cfg, entries, rec)
	var contentTotal uint64
	for _, e := range entries {
		if e.Kind == EntryFile && e.Size > 0 {
			contentTotal += uint64(e.Size)
		}
	}

	cfg.log().Info("assembling image",
		"entries", len(entries),
		"bootstrap_size", len(bootstrap),
		"compression", cfg.compression.String(),
		"level", cfg.level.String())

	var buf bytes.Buffer
	buf.Grow(len(bootstrap) + format.MagicSize + format.TagSize + format.TrailerSize + 1<<16)

	buf.Write(bootstrap)
	magicOffset := uint64(buf.Len())
	buf.WriteString(format.Magic)
	tag := cfg.compression.Tag()
	buf.Write(tag[:])
	blobOffset := buf.Len()

	files, err := writePayload(ctx, &cfg, &buf, entries, contentTotal)
	if err != nil {
		return nil, err
	}
	blobSize := uint64(buf.Len() - blobOffset)

	cfg.report(ProgressEvent{Stage: StageFinalizing, BytesDone: contentTotal, BytesTotal: contentTotal, EntriesDone: len(entries), EntriesTotal: len(entries)})
	buf.Write(meta)

	trailer := format.Trailer{
		BlobSize:     blobSize,
		MetadataSize: uint64(len(meta)),
		MagicOffset:  magicOffset,
	}
	buf.Write(trailer.AppendBinary(nil))

	layout, err := format.Locate(trailer, int64(buf.Len()))
	if err != nil {
		return nil, fmt.Errorf("assembled image failed layout check: %w", err)
	}

	cfg.log().Debug("image assembled",
		"size", layout.Size,
		"magic_offset", layout.MagicOffset,
		"blob_size", layout.BlobSize,
		"metadata_size", layout.MetadataSize)

	return &Image{
		data:        buf.Bytes(),
		layout:      layout,
		compression: cfg.compression,
		stats: Stats{
			Entries:      len(entries),
			Files:        files,
			ContentBytes: contentTotal,
		},
	}, nil
}

// prepareEntries returns the entry list to encode: a sorted copy when
// requested, with the inline metadata entry appended.
func prepareEntries(cfg *config, entries []Entry, rec metadata.Record) []Entry {
	out := make([]Entry, 0, len(entries)+1)
	out = append(out, entries...)
	if cfg.sorted {
		slices.SortStableFunc(out, func(a, b Entry) int {
			return strings.Compare(a.Path, b.Path)
		})
	}
	if cfg.inlineMetadata {
		out = append(out, MetadataEntry(rec, cfg.now()))
	}
	return out
}

// writePayload streams the tar encoding of entries through the compressor
// into buf and returns the number of files written.
func writePayload(ctx context.Context, cfg *config, buf *bytes.Buffer, entries []Entry, contentTotal uint64) (int, error) {
	cw, err := codec.NewWriter(cfg.compression, cfg.level, buf)
	if err != nil {
		return 0, err
	}
	enc := tarstream.NewEncoder(cw)

	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := enc.Add(e); err != nil {
			return 0, err
		}
		cfg.report(ProgressEvent{
			Stage:        StageArchiving,
			Path:         e.Path,
			BytesDone:    enc.Bytes(),
			BytesTotal:   contentTotal,
			EntriesDone:  i + 1,
			EntriesTotal: len(entries),
		})
	}

	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("%w: finish archive: %w", ErrCompression, err)
	}
	if err := cw.Close(); err != nil {
		return 0, fmt.Errorf("%w: flush %s stream: %w", ErrCompression, cfg.compression, err)
	}
	return enc.Files(), nil
}
