// Package logger provides structured logging for G6 components.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Pretty bool   // enable pretty console output
}

// New creates a new structured logger.
func New(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

// Nop returns a disabled logger, used as a safe zero-value default.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// Component scopes a logger to one of this process's components
// (scheduler, pipeline, sse, backup, provider, ...), the "component"
// field every collection/observability component is given (spec §2).
// Centralizing it here keeps the field name consistent instead of each
// package spelling out its own .With().Str("component", ...) call.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// Cycle further scopes a component logger to one collection cycle,
// used by the scheduler/pipeline fan-out where every log line within a
// cycle's processing should carry its cycle number for correlation.
func Cycle(log zerolog.Logger, cycle int64) zerolog.Logger {
	return log.With().Int64("cycle", cycle).Logger()
}
