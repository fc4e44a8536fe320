package main

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/sfx"
)

type verifyCmd struct {
	Images []string `arg:"" help:"Images to verify."`
	Jobs   int      `help:"Images verified concurrently." default:"4"`
}

// Run verifies every image and reports one line per image in argument
// order. The first failure cancels the remaining checks.
func (c *verifyCmd) Run(g *globals) error {
	eg, ctx := errgroup.WithContext(g.ctx)
	if c.Jobs > 0 {
		eg.SetLimit(c.Jobs)
	}

	reports := make([]sfx.Report, len(c.Images))
	for i, path := range c.Images {
		eg.Go(func() error {
			f, err := sfx.OpenFile(path, sfx.WithLogger(g.logger.With("image", path)))
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			defer f.Close()

			rep, err := f.Verify(ctx)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			reports[i] = rep
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for i, path := range c.Images {
		rep := reports[i]
		fmt.Fprintf(g.out, "%s: ok (%d entries, %d files, %d bytes)\n", path, rep.Entries, rep.Files, rep.ContentBytes)
	}
	return nil
}
