package main

import (
	"fmt"
	"os"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/sfx"
)

type inspectCmd struct {
	Image  string `arg:"" help:"Image to inspect."`
	List   bool   `help:"List archive entries."`
	Verify bool   `help:"Decode the payload and verify it."`
}

func (c *inspectCmd) Run(g *globals) error {
	f, err := sfx.OpenFile(c.Image, sfx.WithLogger(g.logger))
	if err != nil {
		return err
	}
	defer f.Close()

	dgst, err := fileDigest(c.Image)
	if err != nil {
		return err
	}
	rec, err := f.Metadata()
	if err != nil {
		return err
	}

	l := f.Layout()
	w := g.out
	fmt.Fprintf(w, "image:       %s\n", c.Image)
	fmt.Fprintf(w, "size:        %d\n", l.Size)
	fmt.Fprintf(w, "digest:      %s\n", dgst)
	fmt.Fprintf(w, "compression: %s\n", f.Compression().Tag())
	fmt.Fprintf(w, "bootstrap:   %d bytes\n", l.BootstrapSize)
	fmt.Fprintf(w, "blob:        %d bytes at %d\n", l.BlobSize, l.BlobOffset)
	fmt.Fprintf(w, "metadata:    %d bytes at %d\n", l.MetadataSize, l.MetadataOffset)
	fmt.Fprintf(w, "name:        %s\n", rec.Name)
	fmt.Fprintf(w, "version:     %s\n", rec.Version)
	fmt.Fprintf(w, "install_dir: %s\n", rec.InstallDir)
	fmt.Fprintf(w, "created:     %s\n", rec.Created.Format(time.RFC3339))

	if c.List {
		if err := listEntries(g, f); err != nil {
			return err
		}
	}
	if c.Verify {
		rep, err := f.Verify(g.ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "verified:    %d entries, %d files, %d bytes\n", rep.Entries, rep.Files, rep.ContentBytes)
	}
	return nil
}

func listEntries(g *globals, f *sfx.File) error {
	entries, err := f.Entries(g.ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(g.out, "%-4s %s %10d %s %s\n", e.Kind, e.Mode, e.Size, e.ModTime.UTC().Format(time.RFC3339), e.Path)
	}
	return nil
}

func fileDigest(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", sfx.ErrIO, err)
	}
	defer f.Close()
	d, err := digest.Canonical.FromReader(f)
	if err != nil {
		return "", fmt.Errorf("%w: digest %s: %w", sfx.ErrIO, path, err)
	}
	return d, nil
}
