package logging

import (
	"context"
	"log/slog"
)

// contextHandler lifts ContextFields from the record's context so callers
// using the *Context logging methods get run and unit fields without an
// explicit WithContext. Keys already bound on the logger or present on the
// record are not repeated.
type contextHandler struct {
	next  slog.Handler
	bound map[string]struct{}
}

func newContextHandler(next slog.Handler) slog.Handler {
	return &contextHandler{next: next, bound: map[string]struct{}{}}
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, record slog.Record) error {
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return h.next.Handle(ctx, record)
	}
	present := make(map[string]struct{}, record.NumAttrs())
	record.Attrs(func(attr slog.Attr) bool {
		present[attr.Key] = struct{}{}
		return true
	})
	extra := make([]slog.Attr, 0, len(fields))
	for _, field := range fields {
		if _, ok := h.bound[field.Key]; ok {
			continue
		}
		if _, ok := present[field.Key]; ok {
			continue
		}
		extra = append(extra, field)
	}
	if len(extra) == 0 {
		return h.next.Handle(ctx, record)
	}
	rec := record.Clone()
	rec.AddAttrs(extra...)
	return h.next.Handle(ctx, rec)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := make(map[string]struct{}, len(h.bound)+len(attrs))
	for key := range h.bound {
		bound[key] = struct{}{}
	}
	for _, attr := range attrs {
		bound[attr.Key] = struct{}{}
	}
	return &contextHandler{next: h.next.WithAttrs(attrs), bound: bound}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name), bound: h.bound}
}
