// Package errdef holds the sentinel errors shared by the sfx packages.
package errdef

import "errors"

// Sentinel errors for image assembly and parsing.
var (
	// ErrIO is returned when the bootstrap, a source file, or the destination
	// cannot be read or written.
	ErrIO = errors.New("sfx: i/o failure")

	// ErrUnsafePath is returned when an archive path is malformed or would
	// escape the archive root.
	ErrUnsafePath = errors.New("sfx: unsafe archive path")

	// ErrDuplicatePath is returned when two entries share an archive path.
	ErrDuplicatePath = errors.New("sfx: duplicate archive path")

	// ErrCompression is returned when the compressor fails.
	ErrCompression = errors.New("sfx: compression failed")

	// ErrDecompression is returned when the payload cannot be decompressed.
	ErrDecompression = errors.New("sfx: decompression failed")

	// ErrUnknownAlgorithm is returned for an algorithm tag with no codec.
	ErrUnknownAlgorithm = errors.New("sfx: unknown compression algorithm")

	// ErrFormat is returned when an image does not match the expected layout.
	ErrFormat = errors.New("sfx: invalid image format")

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = errors.New("sfx: size overflow")

	// ErrTooManyFiles is returned when the source tree has more files than allowed.
	ErrTooManyFiles = errors.New("sfx: too many files")
)
