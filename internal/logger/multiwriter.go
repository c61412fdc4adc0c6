package logger

import (
	"context"
	"errors"
	"log/slog"
)

// teeHandler fans records out to the console and file handlers. Each
// handler keeps its own level, so a record reaches only the outputs that
// accept it.
type teeHandler []slog.Handler

// newMultiWriterHandler combines handlers, dropping nil entries
func newMultiWriterHandler(handlers ...slog.Handler) slog.Handler {
	tee := make(teeHandler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			tee = append(tee, h)
		}
	}
	return tee
}

// Enabled reports whether any output accepts level
func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle writes the record to every output enabled for its level
//
//nolint:gocritic // slog.Handler interface requires record by value, not pointer
func (t teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range t {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t teeHandler) each(fn func(slog.Handler) slog.Handler) teeHandler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = fn(h)
	}
	return out
}
