// Package logging builds the zerolog loggers used by every command.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures New.
type Options struct {
	Service string
	Version string

	// Level is a zerolog level name. Default: info.
	Level string

	// Format is "json" (default) or "console".
	Format string

	// Output defaults to stdout for json and stderr for console.
	Output io.Writer
}

// New returns a logger with timestamp, service and version fields.
func New(opts Options) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	var out io.Writer
	switch strings.ToLower(opts.Format) {
	case "console", "text":
		out = opts.Output
		if out == nil {
			out = os.Stderr
		}
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	default:
		out = opts.Output
		if out == nil {
			out = os.Stdout
		}
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if opts.Service != "" {
		ctx = ctx.Str("service", opts.Service)
	}
	if opts.Version != "" {
		ctx = ctx.Str("version", opts.Version)
	}
	return ctx.Logger()
}
