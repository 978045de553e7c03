// Package log provides the structured logging interface used across intelliml.
//
// The interface is a thin, slog-compatible facade so components log with ML
// specific attributes without depending on a concrete backend:
//
//	logger := log.GetLoggerWithName("trainer").With(log.JobIDKey, id)
//	logger.Info("candidate trained",
//	    log.ModelIDKey, "random_forest",
//	    log.ScoreKey, 0.93,
//	)
package log

import (
	"context"
)

// Logger is the logging facade. Fields are key-value pairs; a lone leading
// error is logged under "error" together with its stack trace.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)

	With(fields ...any) Logger
	Enabled(ctx context.Context, level Level) bool
}

// Level mirrors slog.Level values.
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider hands out component loggers. The process has one, swapped
// by SetProvider in tests.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
	SetLevel(level Level)
}
