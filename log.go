package mwixnet

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with mwixnet-specific conveniences, mirroring the
// module-child-logger pattern used elsewhere in the retrieved pack.
type Logger struct {
	inner *slog.Logger
}

// defaultLogger is the process-wide logger used by the package-level
// convenience functions.
var defaultLogger = NewLogger(slog.LevelInfo)

// NewLogger creates a Logger that writes JSON to stderr at the given level.
func NewLogger(level slog.Level) *Logger {
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &Logger{inner: slog.New(h)}
}

// NewLoggerWithHandler creates a Logger backed by the supplied slog.Handler,
// for tests or alternate destinations.
func NewLoggerWithHandler(h slog.Handler) *Logger {
	return &Logger{inner: slog.New(h)}
}

// SetDefaultLogger replaces the package-level default logger.
func SetDefaultLogger(l *Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// DefaultLogger returns the current package-level default logger.
func DefaultLogger() *Logger {
	return defaultLogger
}

// Module returns a child logger tagged with the given subsystem name — the
// round scheduler, the RPC dispatcher, the store, and so on each get their
// own.
func (l *Logger) Module(name string) *Logger {
	return &Logger{inner: l.inner.With("module", name)}
}

// With returns a child logger with additional key-value context.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{inner: l.inner.With(args...)}
}

func (l *Logger) Debug(msg string, args ...any) { l.inner.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.inner.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.inner.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.inner.Error(msg, args...) }
