package sfx

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/meigma/sfx/metadata"
)

// PackConfig names the inputs and output of a Pack run.
type PackConfig struct {
	// SourcesDir is the tree to bundle.
	SourcesDir string

	// BootstrapPath is the executable the image starts with.
	BootstrapPath string

	// OutputPath is where the image is written.
	OutputPath string

	// Metadata is the installer record. A zero Created is stamped with the
	// build clock.
	Metadata metadata.Record
}

// Pack reads the bootstrap, collects SourcesDir, assembles the image, and
// saves it to OutputPath.
//
// All inputs are read and the image is fully built before anything is
// written, so a failed run creates no output and leaves an existing file
// untouched.
func Pack(ctx context.Context, pc PackConfig, opts ...Option) (*Image, error) {
	cfg := newConfig(opts)
	if pc.OutputPath == "" {
		return nil, errors.New("sfx: output path is required")
	}

	rec := pc.Metadata
	if rec.Created.IsZero() {
		rec.Created = cfg.now()
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	bootstrap, err := os.ReadFile(pc.BootstrapPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read bootstrap: %w", ErrIO, err)
	}

	entries, err := Collect(ctx, pc.SourcesDir, opts...)
	if err != nil {
		return nil, err
	}

	img, err := Assemble(ctx, bootstrap, entries, rec, opts...)
	if err != nil {
		return nil, err
	}

	cfg.report(ProgressEvent{Stage: StageSaving, Path: pc.OutputPath, BytesTotal: uint64(img.Size())}) //nolint:gosec // size is non-negative
	if err := img.Save(pc.OutputPath); err != nil {
		return nil, err
	}

	cfg.log().Info("wrote image",
		"path", pc.OutputPath,
		"size", img.Size(),
		"digest", img.Digest().String())
	return img, nil
}
