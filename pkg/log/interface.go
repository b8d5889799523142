// Package log provides the structured logging interface used across loanml.
//
// The interface is slog-shaped so call sites stay backend-agnostic, while the
// default implementation is backed by zerolog (see zerolog.go). Fields are
// passed as alternating key/value pairs; the keys in attributes.go keep the
// training, evaluation and serving logs queryable with one vocabulary.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("pipeline").With(
//	    log.ModelNameKey, "Random Forest",
//	    log.RunIDKey, runID,
//	)
//	logger.Info("Model evaluated",
//	    log.OperationKey, log.OperationScore,
//	    log.AccuracyKey, 0.78,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are key/value pairs. An error value in key position is logged under
// the "error" key together with its stack trace when one is attached.
type Logger interface {
	// Debug logs detailed diagnostic information.
	Debug(msg string, fields ...any)

	// Info logs general operational information.
	Info(msg string, fields ...any)

	// Warn logs potentially problematic situations that do not stop execution.
	Warn(msg string, fields ...any)

	// Error logs error conditions.
	//
	//   logger.Error("Model training failed",
	//       err,
	//       log.ModelNameKey, "SVM",
	//   )
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
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
