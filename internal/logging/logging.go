// Package logging configures the zerolog logger shared by all
// components and carries it through contexts.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New creates a logger writing to w. format selects "console"
// (human-readable, used on terminals) or "json" (machine-readable).
// An unparseable level falls back to info.
func New(w io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	if format != "json" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// NewStderr creates a logger writing to standard error.
func NewStderr(level, format string) zerolog.Logger {
	return New(os.Stderr, level, format)
}

// ComponentLogger returns a child logger tagged with a component name.
func ComponentLogger(log zerolog.Logger, component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
