package sfx

import (
	"github.com/meigma/sfx/internal/errdef"
	"github.com/meigma/sfx/internal/pathutil"
)

// PathError describes why an archive path was rejected. It matches
// ErrUnsafePath with errors.Is.
type PathError = pathutil.PathError

// Errors re-exported from errdef.
var (
	// ErrIO is returned when the bootstrap, a source file, or the output
	// cannot be read or written.
	ErrIO = errdef.ErrIO

	// ErrUnsafePath is returned when an archive path would escape the archive root.
	ErrUnsafePath = errdef.ErrUnsafePath

	// ErrDuplicatePath is returned when two entries share an archive path.
	ErrDuplicatePath = errdef.ErrDuplicatePath

	// ErrCompression is returned when the payload cannot be compressed.
	ErrCompression = errdef.ErrCompression

	// ErrDecompression is returned when the payload cannot be decompressed.
	ErrDecompression = errdef.ErrDecompression

	// ErrUnknownAlgorithm is returned for an algorithm or tag with no codec.
	ErrUnknownAlgorithm = errdef.ErrUnknownAlgorithm

	// ErrFormat is returned when an image does not match the expected layout.
	ErrFormat = errdef.ErrFormat

	// ErrSizeOverflow is returned when a size value overflows.
	ErrSizeOverflow = errdef.ErrSizeOverflow

	// ErrTooManyFiles is returned when the source tree has more files than allowed.
	ErrTooManyFiles = errdef.ErrTooManyFiles
)
