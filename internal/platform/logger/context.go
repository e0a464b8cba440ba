package logger

import (
	"context"
	"log/slog"
)

// loggerKey is the private context key for the request- or
// transaction-scoped logger.
type loggerKey struct{}

// WithLogger returns a new context carrying the given logger. Callers
// lower in the stack recover it with FromContext or
// FromContextOrDefault, so per-request attributes travel with the
// context instead of being re-attached at every layer.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored in the context, or the process
// default logger when none is stored.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// FromContextOrDefault returns the logger stored in the context,
// falling back to the provided default. A nil fallback falls through to
// the process default logger.
func FromContextOrDefault(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}
