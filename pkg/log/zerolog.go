package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	lmerrors "github.com/YuminosukeSato/loanml/pkg/errors"
)

// Output formats accepted by Setup.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options configures the process-wide logger.
type Options struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Format is FormatConsole or FormatJSON.
	Format string
	// Output receives the primary stream. Defaults to os.Stderr.
	Output io.Writer
	// File, when set, additionally writes JSON records to a rotating file.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// ZerologLogger implements Logger on top of zerolog.
type ZerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger wraps an existing zerolog.Logger.
func NewZerologLogger(zl zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{zl: zl}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	return &ZerologLogger{zl: zerolog.Nop()}
}

// Debug implements Logger.Debug.
func (l *ZerologLogger) Debug(msg string, fields ...any) {
	emit(l.zl.Debug(), msg, fields)
}

// Info implements Logger.Info.
func (l *ZerologLogger) Info(msg string, fields ...any) {
	emit(l.zl.Info(), msg, fields)
}

// Warn implements Logger.Warn.
func (l *ZerologLogger) Warn(msg string, fields ...any) {
	emit(l.zl.Warn(), msg, fields)
}

// Error implements Logger.Error.
func (l *ZerologLogger) Error(msg string, fields ...any) {
	emit(l.zl.Error(), msg, fields)
}

// With implements Logger.With.
func (l *ZerologLogger) With(fields ...any) Logger {
	c := l.zl.With()
	for _, f := range pairs(fields) {
		switch v := f.value.(type) {
		case zerolog.LogObjectMarshaler:
			c = c.Object(f.key, v)
		case error:
			c = c.AnErr(f.key, v)
		case string:
			c = c.Str(f.key, v)
		default:
			c = c.Interface(f.key, v)
		}
	}
	return &ZerologLogger{zl: c.Logger()}
}

// Enabled implements Logger.Enabled.
func (l *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	zlvl := toZerologLevel(level)
	return zlvl >= l.zl.GetLevel() && zlvl >= zerolog.GlobalLevel()
}

// Zerolog exposes the underlying zerolog.Logger.
func (l *ZerologLogger) Zerolog() zerolog.Logger {
	return l.zl
}

func emit(e *zerolog.Event, msg string, fields []any) {
	if e == nil {
		return
	}
	for _, f := range pairs(fields) {
		switch v := f.value.(type) {
		case zerolog.LogObjectMarshaler:
			e = e.Object(f.key, v)
		case error:
			e = e.AnErr(f.key, v)
			if st := extractStacktrace(v); st != "" {
				e = e.Str(StacktraceKey, st)
			}
		case time.Duration:
			e = e.Dur(f.key, v)
		case string:
			e = e.Str(f.key, v)
		case int:
			e = e.Int(f.key, v)
		case float64:
			e = e.Float64(f.key, v)
		case bool:
			e = e.Bool(f.key, v)
		default:
			e = e.Interface(f.key, v)
		}
	}
	e.Msg(msg)
}

type field struct {
	key   string
	value any
}

// pairs turns alternating key/value arguments into fields. A bare error in
// key position is keyed as ErrorKey; a trailing key without value is
// reported under "!BADKEY" like slog does.
func pairs(fields []any) []field {
	out := make([]field, 0, len(fields)/2+1)
	for i := 0; i < len(fields); {
		if err, ok := fields[i].(error); ok {
			out = append(out, field{key: ErrorKey, value: err})
			i++
			continue
		}
		if i == len(fields)-1 {
			out = append(out, field{key: "!BADKEY", value: fields[i]})
			break
		}
		out = append(out, field{key: fmt.Sprint(fields[i]), value: fields[i+1]})
		i += 2
	}
	return out
}

func extractStacktrace(err error) string {
	for e := err; e != nil; e = errors.UnwrapOnce(e) {
		if details := errors.GetSafeDetails(e).SafeDetails; len(details) > 0 {
			return details[0]
		}
	}
	return ""
}

// ParseLevel converts a textual level into a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, lmerrors.NewValidationError("log.level", "must be one of debug, info, warn, error", level)
	}
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup builds a logger from opts, installs it as the process default and
// routes library warnings (convergence, undefined metrics) through it. The
// returned Closer releases the log file, if any.
func Setup(opts Options) (Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var primary io.Writer
	switch strings.ToLower(opts.Format) {
	case "", FormatConsole:
		primary = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	case FormatJSON:
		primary = out
	default:
		return nil, nil, lmerrors.NewValidationError("log.format", "must be console or json", opts.Format)
	}

	var closer io.Closer = nopCloser{}
	writer := primary
	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		writer = zerolog.MultiLevelWriter(primary, file)
		closer = file
	}

	zl := zerolog.New(writer).Level(toZerologLevel(level)).With().Timestamp().Logger()
	logger := NewZerologLogger(zl)
	SetLogger(logger)
	return logger, closer, nil
}

var (
	loggerMu      sync.RWMutex
	defaultLogger Logger = NewZerologLogger(
		zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			Level(zerolog.InfoLevel).With().Timestamp().Logger(),
	)
)

// GetLogger returns the process-wide logger.
func GetLogger() Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return defaultLogger
}

// GetLoggerWithName returns the process-wide logger tagged with a component name.
func GetLoggerWithName(name string) Logger {
	return GetLogger().With(ComponentKey, name)
}

// SetLogger replaces the process-wide logger and points library warnings at it.
func SetLogger(logger Logger) {
	loggerMu.Lock()
	defaultLogger = logger
	loggerMu.Unlock()

	warnLogger := logger.With(ComponentKey, "warnings")
	lmerrors.SetZerologWarnFunc(func(w error) {
		if m, ok := w.(zerolog.LogObjectMarshaler); ok {
			warnLogger.Warn(w.Error(), WarningKey, m)
			return
		}
		warnLogger.Warn(w.Error())
	})
}
