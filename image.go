package sfx

import (
	"bytes"
	_ "crypto/sha256" // registers the digest.Canonical hash
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
)

// ImageMode is the permission applied to saved images.
const ImageMode os.FileMode = 0o755

// Stats summarizes the archive inside an image.
type Stats struct {
	// Entries is the number of archive entries, including directories and
	// the inline metadata entry.
	Entries int

	// Files is the number of file entries.
	Files int

	// ContentBytes is the total uncompressed file content.
	ContentBytes uint64
}

// Image is an assembled installer image held in memory.
type Image struct {
	data        []byte
	layout      Layout
	compression Compression
	stats       Stats
}

// Bytes returns the complete image. The slice must not be modified.
func (im *Image) Bytes() []byte {
	return im.data
}

// Size returns the image length in bytes.
func (im *Image) Size() int64 {
	return int64(len(im.data))
}

// Layout returns the offsets and sizes of every segment.
func (im *Image) Layout() Layout {
	return im.layout
}

// Compression returns the payload compression algorithm.
func (im *Image) Compression() Compression {
	return im.compression
}

// Stats returns archive statistics.
func (im *Image) Stats() Stats {
	return im.stats
}

// Digest returns the sha256 digest of the image.
func (im *Image) Digest() digest.Digest {
	return digest.FromBytes(im.data)
}

// WriteTo writes the image to w.
func (im *Image) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(im.data)
	return int64(n), err
}

// Save writes the image to path.
//
// Uses atomic writes (temp file + rename) so path either keeps its previous
// content or holds the complete image. Parent directories are created as
// needed and the result is made executable.
func (im *Image) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("%w: create output directory: %w", ErrIO, err)
	}
	if err := writeFileAtomic(path, bytes.NewReader(im.data), ImageMode); err != nil {
		return fmt.Errorf("%w: write image %s: %w", ErrIO, path, err)
	}
	return nil
}

// writeFileAtomic streams r to a temp file next to target, then renames it
// over target.
func writeFileAtomic(target string, r io.Reader, perm os.FileMode) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".sfx-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
