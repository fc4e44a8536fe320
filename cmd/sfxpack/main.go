// Command sfxpack builds and inspects self-extracting installer images.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
)

var version = "dev"

const defaultInstallDir = `%LOCALAPPDATA%\MikoIDE`

type cli struct {
	LogLevel  string           `help:"Log level (${enum})." default:"info" enum:"debug,info,warn,error"`
	LogFormat string           `help:"Log format (${enum})." default:"text" enum:"text,json"`
	Version   kong.VersionFlag `short:"v" help:"Display version."`

	Pack    packCmd    `cmd:"" help:"Bundle a directory tree into an installer image."`
	Inspect inspectCmd `cmd:"" help:"Show the layout and metadata of an image."`
	Verify  verifyCmd  `cmd:"" help:"Decode and check one or more images."`
}

// globals are bound into every command's Run method.
type globals struct {
	ctx    context.Context
	logger *slog.Logger
	out    io.Writer
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var c cli
	parser, err := kong.New(&c,
		kong.Name("sfxpack"),
		kong.Description("Build self-extracting installer images."),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		kong.Vars{
			"version":             version,
			"default_install_dir": defaultInstallDir,
		},
	)
	if err != nil {
		fmt.Fprintf(stderr, "sfxpack: %v\n", err)
		return 2
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "sfxpack: %v\n", err)
		return 2
	}

	logger, err := newLogger(stderr, c.LogLevel, c.LogFormat)
	if err != nil {
		fmt.Fprintf(stderr, "sfxpack: %v\n", err)
		return 2
	}

	if err := kctx.Run(&globals{ctx: ctx, logger: logger, out: stdout}); err != nil {
		logger.Error("command failed", "command", kctx.Command(), "error", err)
		fmt.Fprintf(stderr, "sfxpack: %v\n", err)
		return 1
	}
	return 0
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

// resolve returns p unchanged when absolute, otherwise joined onto root.
func resolve(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
