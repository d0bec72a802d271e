// Package logging builds the process logger and carries it, together with the
// current poll cycle ID, through context.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns a logger writing to w, configured from LOG_LEVEL
// (debug, info, warn, error) and LOG_FORMAT (json, text).
func NewLogger(w io.Writer) *slog.Logger {
	return New(w, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

// New returns a logger writing to w. Unknown levels mean info and unknown
// formats mean json.
func New(w io.Writer, level, format string) *slog.Logger {
	logLevel := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: logLevel,
		// Source locations are only worth their noise when debugging.
		AddSource: logLevel <= slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a LOG_LEVEL value to a slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type contextKey string

const (
	loggerContextKey  contextKey = "logger"
	cycleIDContextKey contextKey = "cycle_id"
)

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// FromContext returns the logger stored in ctx, or slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithCycleID stores the poll cycle ID in ctx.
func WithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleIDContextKey, id)
}

// CycleIDFromContext returns the poll cycle ID stored in ctx, or "".
func CycleIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(cycleIDContextKey).(string)
	return id
}

// WithCycle returns logger annotated with the cycle ID from ctx, if any.
func WithCycle(ctx context.Context, logger *slog.Logger) *slog.Logger {
	id := CycleIDFromContext(ctx)
	if id == "" {
		return logger
	}
	return logger.With(slog.String("cycle_id", id))
}
