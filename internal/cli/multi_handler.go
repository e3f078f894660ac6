package cli

import (
	"context"
	"errors"
	"log/slog"
)

// MultiLevelHandler fans a log record out to several handlers, each with
// its own level filter. The CLI uses it to keep stderr at the configured
// level while the rotating log file receives everything.
type MultiLevelHandler struct {
	handlers []slog.Handler
}

// NewMultiLevelHandler wraps the given handlers.
func NewMultiLevelHandler(handlers ...slog.Handler) *MultiLevelHandler {
	return &MultiLevelHandler{handlers: handlers}
}

// Enabled reports whether any wrapped handler accepts the level.
func (h *MultiLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers the record to every wrapped handler that accepts its
// level.
func (h *MultiLevelHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// WithAttrs returns a new handler with the attributes applied to every
// wrapped handler.
func (h *MultiLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return NewMultiLevelHandler(handlers...)
}

// WithGroup returns a new handler with the group applied to every
// wrapped handler.
func (h *MultiLevelHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return NewMultiLevelHandler(handlers...)
}
