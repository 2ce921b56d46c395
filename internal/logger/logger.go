// Package logger provides structured logging with typed fields,
// backed by log/slog.
package logger

import (
	"io"
	"log/slog"
	"time"
)

// LogLevel controls the minimum severity emitted by a logger.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Logger is the logging interface used throughout the application.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a logger that includes the given fields on every record.
	With(fields ...Field) Logger
}

// Field is a typed key/value pair attached to a log record.
type Field = slog.Attr

// String creates a string field.
func String(key, value string) Field { return slog.String(key, value) }

// Int creates an int field.
func Int(key string, value int) Field { return slog.Int(key, value) }

// Int64 creates an int64 field.
func Int64(key string, value int64) Field { return slog.Int64(key, value) }

// Uint64 creates a uint64 field.
func Uint64(key string, value uint64) Field { return slog.Uint64(key, value) }

// Float64 creates a float64 field.
func Float64(key string, value float64) Field { return slog.Float64(key, value) }

// Bool creates a bool field.
func Bool(key string, value bool) Field { return slog.Bool(key, value) }

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field { return slog.Duration(key, value) }

// Time creates a time field.
func Time(key string, value time.Time) Field { return slog.Time(key, value) }

// Error creates a field holding an error message under the "error" key.
func Error(err error) Field {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// Any creates a field with an arbitrary value.
func Any(key string, value any) Field { return slog.Any(key, value) }

// slogLogger adapts *slog.Logger to the Logger interface.
type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger creates a Logger writing JSON records to w at the given
// level. The optional baseFields are attached to every record.
func NewSlogLogger(w io.Writer, level LogLevel, baseFields []Field) Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slogLevel(level)})
	l := slog.New(handler)
	if len(baseFields) > 0 {
		l = l.With(attrsToAny(baseFields)...)
	}
	return &slogLogger{l: l}
}

func slogLevel(level LogLevel) slog.Level {
	switch level {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func attrsToAny(fields []Field) []any {
	out := make([]any, len(fields))
	for i, f := range fields {
		out[i] = f
	}
	return out
}

func (s *slogLogger) Debug(msg string, fields ...Field) { s.l.Debug(msg, attrsToAny(fields)...) }
func (s *slogLogger) Info(msg string, fields ...Field)  { s.l.Info(msg, attrsToAny(fields)...) }
func (s *slogLogger) Warn(msg string, fields ...Field)  { s.l.Warn(msg, attrsToAny(fields)...) }
func (s *slogLogger) Error(msg string, fields ...Field) { s.l.Error(msg, attrsToAny(fields)...) }

func (s *slogLogger) With(fields ...Field) Logger {
	return &slogLogger{l: s.l.With(attrsToAny(fields)...)}
}
