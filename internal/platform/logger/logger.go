package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// contextKey is a private type for context keys defined in this package.
type contextKey int

// loggerKey is the context key under which a request-scoped logger travels.
const loggerKey contextKey = iota

// Setup initializes the application's logging system. It creates a
// structured JSON logger writing to stdout at the configured level, sets it
// as the process default, and returns it.
//
// An unrecognized level falls back to info with a warning on stderr.
func Setup(logLevel string) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo

		tmpLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			"configured_level", logLevel,
			"default_level", "info")
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)

	// Allow package-level slog.Info etc. to use the same handler
	slog.SetDefault(logger)

	return logger
}

// WithLogger returns a copy of ctx carrying the given logger. Request
// middleware uses this to propagate a trace-scoped logger to everything
// downstream.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger carried by ctx, or the process default
// logger when none is present.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	return slog.Default()
}

// FromContextOrDefault returns the logger carried by ctx, falling back to
// the provided logger, then to the process default.
func FromContextOrDefault(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}
