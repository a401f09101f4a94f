// Package logging wires the process logger: human-readable lines on
// stderr, plus JSON lines into the run's logs/run.log once a run
// directory exists. Both sinks receive the same records.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const logFilePerm = 0o644

// Setup builds the stderr logger. Debug lowers the level threshold.
func Setup(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// WithRunFile extends logger with a JSON file sink at path, creating
// parent directories as needed. The returned closer flushes and closes
// the file; the returned logger must not be used after closing.
func WithRunFile(logger *slog.Logger, path string, debug bool) (*slog.Logger, func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, logFilePerm)
	if err != nil {
		return nil, nil, fmt.Errorf("open run log: %w", err)
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	fileHandler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})
	combined := slog.New(teeHandler{logger.Handler(), fileHandler})
	return combined, f.Close, nil
}

// teeHandler fans every record out to all handlers.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, rec slog.Record) error {
	var firstErr error
	for _, h := range t {
		if !h.Enabled(ctx, rec.Level) {
			continue
		}
		if err := h.Handle(ctx, rec.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
