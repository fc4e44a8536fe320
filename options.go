package sfx

import (
	"log/slog"
	"time"
)

// DefaultMaxFiles is the default limit used when no WithMaxFiles option is set.
const DefaultMaxFiles = 200_000

// config holds settings shared by Collect, Assemble, Pack, and Verify.
type config struct {
	logger         *slog.Logger
	progress       ProgressFunc
	clock          func() time.Time
	compression    Compression
	level          CompressionLevel
	basePrefix     string
	sorted         bool
	inlineMetadata bool
	maxFiles       int
}

func newConfig(opts []Option) config {
	cfg := config{
		clock:          time.Now,
		compression:    CompressionLZMA,
		level:          LevelDefault,
		inlineMetadata: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// log returns the logger, falling back to a discard logger if nil.
func (c *config) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// now returns the build clock reading.
func (c *config) now() time.Time {
	if c.clock == nil {
		return time.Now()
	}
	return c.clock()
}

func (c *config) report(ev ProgressEvent) {
	if c.progress != nil {
		c.progress(ev)
	}
}

// Option configures image building and reading.
type Option func(*config)

// WithLogger sets the logger for build and verify operations.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithProgress sets a callback for progress updates.
func WithProgress(fn ProgressFunc) Option {
	return func(c *config) {
		c.progress = fn
	}
}

// WithClock overrides the clock used to stamp directory entries and the
// inline metadata entry. A fixed clock makes builds reproducible.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.clock = now
	}
}

// WithCompression sets the payload compression algorithm (default: CompressionLZMA).
func WithCompression(alg Compression) Option {
	return func(c *config) {
		c.compression = alg
	}
}

// WithCompressionLevel sets the compression level (default: LevelDefault).
func WithCompressionLevel(level CompressionLevel) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithBasePrefix places all collected entries under prefix inside the archive.
func WithBasePrefix(prefix string) Option {
	return func(c *config) {
		c.basePrefix = prefix
	}
}

// WithSortedEntries sorts entries by archive path before encoding, so
// identical trees produce identical archives regardless of the order the
// filesystem enumerates them in. The inline metadata entry stays last.
func WithSortedEntries(enabled bool) Option {
	return func(c *config) {
		c.sorted = enabled
	}
}

// WithInlineMetadata controls whether Assemble appends metadata.toml to the
// archive (default: true). The standalone metadata segment after the blob is
// always written.
func WithInlineMetadata(enabled bool) Option {
	return func(c *config) {
		c.inlineMetadata = enabled
	}
}

// WithMaxFiles limits the number of files Collect accepts.
// Zero uses DefaultMaxFiles. Negative means no limit.
func WithMaxFiles(n int) Option {
	return func(c *config) {
		c.maxFiles = n
	}
}
