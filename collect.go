package sfx

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/meigma/sfx/internal/pathutil"
	"github.com/meigma/sfx/internal/tarstream"
)

// Collect walks dir and returns an entry for every directory and regular
// file beneath it.
//
// Directories are visited top-down and entries are emitted in walk order.
// Each directory produces a directory entry, including empty ones; the root
// itself produces one only when a base prefix is set. Directory entries carry
// the build clock as their modification time, files carry their source
// modification time. File content is not read here: each file entry opens its
// source, confined to dir, when the archive is encoded.
//
// Symbolic links and other non-regular files are skipped.
//
// The context is checked between entries.
func Collect(ctx context.Context, dir string, opts ...Option) ([]Entry, error) {
	cfg := newConfig(opts)

	base, err := pathutil.Normalize(cfg.basePrefix)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve sources %s: %w", ErrIO, dir, err)
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: open sources: %w", ErrIO, err)
	}
	defer root.Close()

	c := &collector{
		cfg:      &cfg,
		dir:      abs,
		base:     base,
		now:      cfg.now(),
		maxFiles: cfg.maxFiles,
	}
	if c.maxFiles == 0 {
		c.maxFiles = DefaultMaxFiles
	}

	cfg.log().Info("collecting sources", "dir", abs, "base", base)
	cfg.report(ProgressEvent{Stage: StageCollecting})

	if err := fs.WalkDir(root.FS(), ".", c.visit(ctx)); err != nil {
		return nil, err
	}

	cfg.log().Debug("sources collected", "entries", len(c.entries), "files", c.files, "bytes", c.bytes)
	return c.entries, nil
}

// collector holds walk state for Collect.
type collector struct {
	cfg      *config
	dir      string
	base     string
	now      time.Time
	maxFiles int
	entries  []Entry
	files    int
	bytes    uint64
}

func (c *collector) visit(ctx context.Context) fs.WalkDirFunc {
	return func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("%w: walk %s: %w", ErrIO, path, walkErr)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return c.addDir(path)
		}
		if d.Type()&fs.ModeSymlink != 0 {
			c.cfg.log().Debug("skipped symlink", "path", path)
			return nil
		}
		return c.addFile(path, d)
	}
}

func (c *collector) addDir(path string) error {
	arc := c.base
	if path != "." {
		var err error
		if arc, err = pathutil.Join(c.base, path); err != nil {
			return err
		}
	}
	if arc == "" {
		return nil
	}
	c.entries = append(c.entries, tarstream.Dir(pathutil.DirPath(arc), c.now))
	return nil
}

func (c *collector) addFile(path string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", ErrIO, path, err)
	}
	if !info.Mode().IsRegular() {
		c.cfg.log().Debug("skipped non-regular file", "path", path, "mode", info.Mode().String())
		return nil
	}
	if c.maxFiles > 0 && c.files >= c.maxFiles {
		return ErrTooManyFiles
	}

	arc, err := pathutil.Join(c.base, path)
	if err != nil {
		return err
	}

	name := filepath.FromSlash(path)
	dir := c.dir
	open := func() (io.ReadCloser, error) {
		f, err := os.OpenInRoot(dir, name)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	c.entries = append(c.entries, tarstream.File(arc, info.Size(), info.ModTime(), open))
	c.files++
	c.bytes += uint64(info.Size()) //nolint:gosec // regular file sizes are non-negative
	c.cfg.report(ProgressEvent{Stage: StageCollecting, Path: arc, BytesDone: c.bytes, EntriesDone: len(c.entries)})
	return nil
}
