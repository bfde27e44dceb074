// Package logging provides the process-wide zerolog logger with console
// defaults. Diagnostics go through this logger; user-facing progress output
// stays on stdout in the cmd layer.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once sync.Once
	root zerolog.Logger
)

// Options configures the root logger once at startup.
type Options struct {
	Level  string
	Format string // "console" or "json"
	Writer io.Writer
}

// FromEnv reads LIBROTRAN_LOG_LEVEL and LIBROTRAN_LOG_FORMAT.
func FromEnv() Options {
	return Options{
		Level:  strings.ToLower(os.Getenv("LIBROTRAN_LOG_LEVEL")),
		Format: strings.ToLower(os.Getenv("LIBROTRAN_LOG_FORMAT")),
	}
}

// Init builds the root logger. Safe to call more than once; only the first
// call wins.
func Init(opt Options) {
	once.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339

		var w io.Writer = os.Stderr
		if opt.Writer != nil {
			w = opt.Writer
		}
		if opt.Format != "json" {
			w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		}

		root = zerolog.New(w).Level(parseLevel(opt.Level)).With().Timestamp().Logger()
	})
}

// Get returns the root logger, initializing it from the environment when
// nothing has called Init yet.
func Get() zerolog.Logger {
	Init(FromEnv())
	return root
}

// With returns the root logger tagged with a component name.
func With(component string) zerolog.Logger {
	return Get().With().Str("component", component).Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.TrimSpace(s) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
