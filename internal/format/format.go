// Package format defines the binary layout of a self-extracting image.
//
// An image is laid out as:
//
//	[bootstrap][magic 10B][tag 4B][blob][metadata][trailer 24B]
//
// The trailer holds three little-endian uint64 values: the blob size, the
// metadata size, and the absolute offset of the magic marker.
package format

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/meigma/sfx/internal/errdef"
	"github.com/meigma/sfx/internal/sizing"
)

// Magic marks the start of the payload segment.
const Magic = "MIKOSETUP\x00"

const (
	// MagicSize is the length of Magic in bytes.
	MagicSize = 10

	// TagSize is the length of the algorithm tag in bytes.
	TagSize = 4

	// TrailerSize is the length of the trailer in bytes.
	TrailerSize = 24

	// headerSize is the magic plus tag, which sit between bootstrap and blob.
	headerSize = MagicSize + TagSize
)

// MaxMetadataSize bounds the metadata segment a reader will load into memory.
const MaxMetadataSize = 1 << 20

// Trailer is the fixed-width record at the end of an image.
type Trailer struct {
	// BlobSize is the length of the compressed archive, excluding the tag.
	BlobSize uint64

	// MetadataSize is the length of the metadata segment before the trailer.
	MetadataSize uint64

	// MagicOffset is the absolute offset of the magic marker.
	MagicOffset uint64
}

// AppendBinary appends the little-endian encoding of t to b.
func (t Trailer) AppendBinary(b []byte) []byte {
	b = binary.LittleEndian.AppendUint64(b, t.BlobSize)
	b = binary.LittleEndian.AppendUint64(b, t.MetadataSize)
	return binary.LittleEndian.AppendUint64(b, t.MagicOffset)
}

// ParseTrailer decodes a trailer from exactly TrailerSize bytes.
func ParseTrailer(b []byte) (Trailer, error) {
	if len(b) != TrailerSize {
		return Trailer{}, fmt.Errorf("%w: trailer is %d bytes, want %d", errdef.ErrFormat, len(b), TrailerSize)
	}
	return Trailer{
		BlobSize:     binary.LittleEndian.Uint64(b[0:8]),
		MetadataSize: binary.LittleEndian.Uint64(b[8:16]),
		MagicOffset:  binary.LittleEndian.Uint64(b[16:24]),
	}, nil
}

// Layout locates every segment of an image.
type Layout struct {
	BootstrapSize  uint64
	MagicOffset    uint64
	TagOffset      uint64
	BlobOffset     uint64
	BlobSize       uint64
	MetadataOffset uint64
	MetadataSize   uint64
	TrailerOffset  uint64
	Size           uint64
}

// Layout derives segment offsets from the trailer fields. It returns
// ErrSizeOverflow if the offsets do not fit in a uint64.
func (t Trailer) Layout() (Layout, error) {
	end, ok := sizing.Sum(t.MagicOffset, headerSize, t.BlobSize, t.MetadataSize, TrailerSize)
	if !ok {
		return Layout{}, errdef.ErrSizeOverflow
	}
	l := Layout{
		BootstrapSize: t.MagicOffset,
		MagicOffset:   t.MagicOffset,
		TagOffset:     t.MagicOffset + MagicSize,
		BlobOffset:    t.MagicOffset + headerSize,
		BlobSize:      t.BlobSize,
		MetadataSize:  t.MetadataSize,
		Size:          end,
	}
	l.MetadataOffset = l.BlobOffset + t.BlobSize
	l.TrailerOffset = l.MetadataOffset + t.MetadataSize
	return l, nil
}

// Trailer returns the trailer record describing l.
func (l Layout) Trailer() Trailer {
	return Trailer{BlobSize: l.BlobSize, MetadataSize: l.MetadataSize, MagicOffset: l.MagicOffset}
}

// Locate validates t against an image of size bytes and returns its layout.
// The trailer is accepted only if its segments exactly fill the image.
func Locate(t Trailer, size int64) (Layout, error) {
	if size < int64(headerSize+TrailerSize) {
		return Layout{}, fmt.Errorf("%w: image is %d bytes, smaller than the minimum %d", errdef.ErrFormat, size, headerSize+TrailerSize)
	}
	l, err := t.Layout()
	if err != nil {
		return Layout{}, fmt.Errorf("%w: trailer sizes overflow", errdef.ErrFormat)
	}
	if l.Size != uint64(size) {
		return Layout{}, fmt.Errorf("%w: trailer describes %d bytes, image has %d", errdef.ErrFormat, l.Size, size)
	}
	return l, nil
}

// CheckMagic reports ErrFormat unless b starts with Magic.
func CheckMagic(b []byte, offset uint64) error {
	if len(b) < MagicSize || !bytes.Equal(b[:MagicSize], []byte(Magic)) {
		return fmt.Errorf("%w: magic mismatch at offset %d", errdef.ErrFormat, offset)
	}
	return nil
}
