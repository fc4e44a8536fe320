package main

import (
	"fmt"

	"github.com/meigma/sfx"
	"github.com/meigma/sfx/metadata"
)

type packCmd struct {
	ProjectRoot  string `help:"Project root. Relative paths resolve against it." required:""`
	BuildDir     string `help:"Build directory." required:""`
	SourcesDir   string `help:"Directory tree to bundle." required:""`
	BootstrapExe string `help:"Bootstrap executable the image starts with." required:""`
	AppName      string `help:"Application name." required:""`
	AppVersion   string `help:"Application version." required:""`
	Output       string `help:"Image to write." required:"" short:"o"`
	InstallDir   string `help:"Default install directory." default:"${default_install_dir}"`
	Compression  string `help:"Payload compression (${enum})." default:"lzma" enum:"lzma,zstd,lz4,gzip,none"`
	Level        string `help:"Compression level (${enum})." default:"default" enum:"default,fastest,best"`
	BasePrefix   string `help:"Place all entries under this archive directory."`
	Sort         bool   `help:"Sort entries by path for reproducible archives."`
}

func (c *packCmd) Run(g *globals) error {
	alg, err := sfx.ParseCompression(c.Compression)
	if err != nil {
		return err
	}
	level, err := sfx.ParseCompressionLevel(c.Level)
	if err != nil {
		return err
	}

	pc := sfx.PackConfig{
		SourcesDir:    resolve(c.ProjectRoot, c.SourcesDir),
		BootstrapPath: resolve(c.ProjectRoot, c.BootstrapExe),
		OutputPath:    resolve(c.ProjectRoot, c.Output),
		Metadata: metadata.Record{
			Name:       c.AppName,
			Version:    c.AppVersion,
			InstallDir: c.InstallDir,
		},
	}
	g.logger.Debug("packing",
		"project_root", c.ProjectRoot,
		"build_dir", resolve(c.ProjectRoot, c.BuildDir),
		"sources", pc.SourcesDir,
		"bootstrap", pc.BootstrapPath)

	_, err = sfx.Pack(g.ctx, pc,
		sfx.WithLogger(g.logger),
		sfx.WithCompression(alg),
		sfx.WithCompressionLevel(level),
		sfx.WithBasePrefix(c.BasePrefix),
		sfx.WithSortedEntries(c.Sort),
	)
	if err != nil {
		return err
	}
	fmt.Fprintf(g.out, "Wrote setup: %s\n", c.Output)
	return nil
}
