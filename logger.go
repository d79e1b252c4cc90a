package engram

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with engram-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithID returns a Logger tagged with a record id.
func (l *Logger) WithID(id uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("id", id),
	}
}

// LogOpen logs the outcome of opening a database directory.
func (l *Logger) LogOpen(ctx context.Context, dir string, records int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open failed",
			"dir", dir,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "database opened",
			"dir", dir,
			"records", records,
		)
	}
}

// LogStore logs a store operation.
func (l *Logger) LogStore(ctx context.Context, id uint64, dimension int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "store failed",
			"id", id,
			"dimension", dimension,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "store completed",
			"id", id,
			"dimension", dimension,
		)
	}
}

// LogRecall logs a recall operation.
func (l *Logger) LogRecall(ctx context.Context, limit, found int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "recall failed",
			"limit", limit,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "recall completed",
			"limit", limit,
			"results", found,
		)
	}
}

// LogDelete logs a delete operation.
func (l *Logger) LogDelete(ctx context.Context, id uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete completed",
			"id", id,
		)
	}
}

// LogSnapshot logs a snapshot operation.
func (l *Logger) LogSnapshot(ctx context.Context, filename string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"filename", filename,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"filename", filename,
		)
	}
}

// LogRecovery logs a log replay.
func (l *Logger) LogRecovery(ctx context.Context, framesReplayed int, tornTail bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "log recovery failed",
			"frames_replayed", framesReplayed,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "log recovery completed",
			"frames_replayed", framesReplayed,
			"torn_tail", tornTail,
		)
	}
}

// LogClose logs handle shutdown.
func (l *Logger) LogClose(ctx context.Context, err error) {
	if err != nil {
		l.ErrorContext(ctx, "close failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "database closed")
	}
}
