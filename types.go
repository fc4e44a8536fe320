package sfx

import (
	"github.com/meigma/sfx/internal/codec"
	"github.com/meigma/sfx/internal/format"
	"github.com/meigma/sfx/internal/tarstream"
)

// Entry is one file or directory bound for the archive.
type Entry = tarstream.Entry

// EntryKind distinguishes files from directories.
type EntryKind = tarstream.Kind

// EntryInfo describes an entry read back from an image.
type EntryInfo = tarstream.Header

// Layout locates every segment of an image.
type Layout = format.Layout

// Compression identifies the payload compression algorithm.
type Compression = codec.Algorithm

// CompressionLevel selects a speed/ratio trade-off.
type CompressionLevel = codec.Level

// Entry kinds.
const (
	EntryFile = tarstream.KindFile
	EntryDir  = tarstream.KindDir
)

// Permission bits recorded for every entry.
const (
	DirMode  = tarstream.DirMode
	FileMode = tarstream.FileMode
)

// Compression constants. CompressionLZMA is the default.
const (
	CompressionNone = codec.AlgorithmNone
	CompressionLZMA = codec.AlgorithmLZMA
	CompressionZstd = codec.AlgorithmZstd
	CompressionLZ4  = codec.AlgorithmLZ4
	CompressionGzip = codec.AlgorithmGzip
)

// Compression level constants.
const (
	LevelDefault = codec.LevelDefault
	LevelFastest = codec.LevelFastest
	LevelBest    = codec.LevelBest
)

// Format constants.
const (
	Magic       = format.Magic
	TrailerSize = format.TrailerSize
)

// Entry constructors re-exported from tarstream.
var (
	// DirEntry returns a directory entry. The path must end with "/".
	DirEntry = tarstream.Dir

	// FileEntry returns a file entry whose content is produced by open.
	FileEntry = tarstream.File

	// BytesEntry returns a file entry holding the given bytes.
	BytesEntry = tarstream.Bytes
)

// ParseCompression returns the algorithm with the given name
// ("lzma", "zstd", "lz4", "gzip", "none").
func ParseCompression(name string) (Compression, error) {
	return codec.ParseName(name)
}

// ParseCompressionLevel returns the level with the given name
// ("default", "fastest", "best").
func ParseCompressionLevel(name string) (CompressionLevel, error) {
	return codec.ParseLevel(name)
}
