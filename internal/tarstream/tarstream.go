// Package tarstream encodes archive entries as a tar stream and scans them back.
package tarstream

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/meigma/sfx/internal/errdef"
	"github.com/meigma/sfx/internal/pathutil"
)

// Permission bits applied to every entry. Source permissions are never
// carried into the archive.
const (
	DirMode  fs.FileMode = 0o755
	FileMode fs.FileMode = 0o644
)

// Kind distinguishes files from directories.
type Kind uint8

const (
	KindFile Kind = iota
	KindDir
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	default:
		return "unknown"
	}
}

// Entry is one filesystem object bound for the archive.
type Entry struct {
	// Path is the normalized archive path. Directories end with "/".
	Path string

	// Kind is KindFile or KindDir.
	Kind Kind

	// Size is the content length. Always zero for directories.
	Size int64

	// ModTime is stored with second precision.
	ModTime time.Time

	// Open returns the file content. It is called once, during encoding, and
	// the returned reader is closed before the next entry is written.
	Open func() (io.ReadCloser, error)
}

// Mode returns the permission bits recorded for e.
func (e Entry) Mode() fs.FileMode {
	if e.Kind == KindDir {
		return DirMode
	}
	return FileMode
}

// Dir returns a directory entry. path must end with "/".
func Dir(path string, modTime time.Time) Entry {
	return Entry{Path: path, Kind: KindDir, ModTime: modTime}
}

// File returns a file entry whose content is produced by open.
func File(path string, size int64, modTime time.Time, open func() (io.ReadCloser, error)) Entry {
	return Entry{Path: path, Kind: KindFile, Size: size, ModTime: modTime, Open: open}
}

// Bytes returns a file entry holding data.
func Bytes(path string, data []byte, modTime time.Time) Entry {
	return File(path, int64(len(data)), modTime, func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
}

// Encoder writes entries to a tar stream.
type Encoder struct {
	tw    *tar.Writer
	seen  map[string]struct{}
	files int
	bytes uint64
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{tw: tar.NewWriter(w), seen: make(map[string]struct{})}
}

// Add validates e and appends it to the stream.
func (enc *Encoder) Add(e Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	if _, dup := enc.seen[e.Path]; dup {
		return fmt.Errorf("%w: %s", errdef.ErrDuplicatePath, e.Path)
	}
	enc.seen[e.Path] = struct{}{}

	hdr := &tar.Header{
		Name:    e.Path,
		Mode:    int64(e.Mode()),
		ModTime: e.ModTime.Truncate(time.Second),
	}
	if e.Kind == KindDir {
		hdr.Typeflag = tar.TypeDir
	} else {
		hdr.Typeflag = tar.TypeReg
		hdr.Size = e.Size
	}
	if err := enc.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header %s: %w", e.Path, err)
	}
	if e.Kind == KindDir {
		return nil
	}
	if err := enc.copyContent(e); err != nil {
		return err
	}
	enc.files++
	enc.bytes += uint64(e.Size) //nolint:gosec // size validated non-negative
	return nil
}

func (enc *Encoder) copyContent(e Entry) error {
	rc, err := e.Open()
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", errdef.ErrIO, e.Path, err)
	}
	defer rc.Close()

	n, err := io.CopyN(enc.tw, rc, e.Size)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %s: file changed during archive creation: read %d of %d bytes", errdef.ErrIO, e.Path, n, e.Size)
		}
		return fmt.Errorf("%w: read %s: %w", errdef.ErrIO, e.Path, err)
	}
	var probe [1]byte
	if extra, _ := rc.Read(probe[:]); extra > 0 {
		return fmt.Errorf("%w: %s: file changed during archive creation: larger than %d bytes", errdef.ErrIO, e.Path, e.Size)
	}
	return nil
}

// Files returns the number of file entries written so far.
func (enc *Encoder) Files() int {
	return enc.files
}

// Bytes returns the total file content written so far.
func (enc *Encoder) Bytes() uint64 {
	return enc.bytes
}

// Close writes the end-of-archive marker.
func (enc *Encoder) Close() error {
	return enc.tw.Close()
}

func validate(e Entry) error {
	switch e.Kind {
	case KindDir:
		if e.Size != 0 {
			return fmt.Errorf("directory %s has non-zero size %d", e.Path, e.Size)
		}
	case KindFile:
		if e.Size < 0 {
			return fmt.Errorf("%w: %s: negative size", errdef.ErrSizeOverflow, e.Path)
		}
		if e.Open == nil {
			return fmt.Errorf("file %s has no content", e.Path)
		}
	default:
		return fmt.Errorf("entry %s has unknown kind %d", e.Path, e.Kind)
	}
	return pathutil.ValidateEntry(e.Path, e.Kind == KindDir)
}

// Header describes an entry read back from a stream.
type Header struct {
	Path    string
	Kind    Kind
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time
}

// Scan reads a tar stream and calls fn for each entry in order. The content
// reader passed to fn is valid only until fn returns. Paths are validated
// before fn is called, so an unsafe path never reaches the callback.
func Scan(r io.Reader, fn func(Header, io.Reader) error) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: read archive: %w", errdef.ErrFormat, err)
		}

		var h Header
		switch hdr.Typeflag {
		case tar.TypeDir:
			h.Kind = KindDir
		case tar.TypeReg:
			h.Kind = KindFile
			h.Size = hdr.Size
		default:
			return fmt.Errorf("%w: %s: unsupported entry type %q", errdef.ErrFormat, hdr.Name, hdr.Typeflag)
		}
		if err := pathutil.ValidateEntry(hdr.Name, h.Kind == KindDir); err != nil {
			return err
		}
		h.Path = hdr.Name
		h.Mode = fs.FileMode(hdr.Mode).Perm() //nolint:gosec // permission bits only
		h.ModTime = hdr.ModTime

		if err := fn(h, tr); err != nil {
			return err
		}
	}
}
