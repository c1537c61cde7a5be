// Package logging builds the server's structured logger. Every component
// receives a *zerolog.Logger (or a sub-logger scoped with
// .With().Str("component", ...)) rather than reaching for a package-level
// global, per the "no ambient globals" design note. Stdout is reserved for
// LSP framing when running as a server, so the logger always writes to
// stderr.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Level mirrors the closed set of levels the "logging.level" configuration
// key accepts.
type Level string

const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
	LevelTrace Level = "trace"
)

// New builds a logger writing newline-delimited JSON to w at the given
// level. Unknown levels fall back to LevelInfo (the caller is expected to
// log the configuration error itself).
func New(w io.Writer, level Level) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger().Level(parseLevel(level))
}

// NewStderr is the server's default logger.
func NewStderr(level Level) zerolog.Logger {
	return New(os.Stderr, level)
}

func parseLevel(level Level) zerolog.Level {
	switch level {
	case LevelError:
		return zerolog.ErrorLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelTrace:
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetLevel returns a copy of l at the requested level; l itself is left
// unchanged, so callers store the returned value.
func SetLevel(l zerolog.Logger, level Level) zerolog.Logger {
	return l.Level(parseLevel(level))
}
