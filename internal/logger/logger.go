package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the logging interface used by the converter and its CLI.
// It wraps slog.Logger so callers can inject a logger through the context.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithGroup(name string) Logger
}

// Output formats accepted by ForFormat.
const (
	FormatPretty = "pretty"
	FormatJSON   = "json"
	FormatText   = "text"
)

// SlogLogger is a Logger implementation that wraps slog.Logger.
type SlogLogger struct {
	logger *slog.Logger
}

// New creates a new Logger with the given handler.
func New(handler slog.Handler) Logger {
	return &SlogLogger{
		logger: slog.New(handler),
	}
}

// Default creates a Logger with a text handler writing to stderr at info level.
func Default() Logger {
	return Text(os.Stderr, slog.LevelInfo)
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// JSON creates a Logger emitting one JSON object per record.
func JSON(w io.Writer, level slog.Level) Logger {
	return New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	}))
}

// Text creates a Logger emitting logfmt records.
func Text(w io.Writer, level slog.Level) Logger {
	return New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// Pretty creates a Logger with colored output for interactive use.
func Pretty(w io.Writer, level slog.Level) Logger {
	return New(NewPrettyHandler(w, &PrettyOptions{
		HandlerOptions: slog.HandlerOptions{Level: level},
		Color:          true,
	}))
}

// ForFormat builds a Logger for one of the FormatX names. Pretty output is
// colored only when color is true.
func ForFormat(format string, w io.Writer, level slog.Level, color bool) (Logger, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatPretty, "":
		return New(NewPrettyHandler(w, &PrettyOptions{
			HandlerOptions: slog.HandlerOptions{Level: level},
			Color:          color,
		})), nil
	case FormatJSON:
		return JSON(w, level), nil
	case FormatText:
		return Text(w, level), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want pretty, json or text)", format)
	}
}

// FromContext retrieves a Logger from the context.
// If no logger is found, returns a default logger.
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return logger
	}
	return Default()
}

// WithContext adds the logger to the context.
func WithContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

type loggerKey struct{}

func (l *SlogLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

func (l *SlogLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

func (l *SlogLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

func (l *SlogLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

func (l *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{
		logger: l.logger.With(args...),
	}
}

func (l *SlogLogger) WithGroup(name string) Logger {
	return &SlogLogger{
		logger: l.logger.WithGroup(name),
	}
}

// ParseLevel converts a level name to slog.Level. Names are case-insensitive.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}
