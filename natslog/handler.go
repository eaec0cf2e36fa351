package natslog

import (
	"context"
	"log/slog"
)

// republishHandler forwards every record to next unchanged, and
// best-effort mirrors it to NATS as a LogEntry. Publication never affects
// the handler's return value.
//
// logger.With("component", ...) reaches a Handler through WithAttrs, not
// through the per-call Record - a Record only carries the attrs passed to
// the logging call itself. groupAttrs accumulates what WithAttrs has seen
// so far so Handle can still recover the component a With-derived logger
// was tagged with.
type republishHandler struct {
	next       slog.Handler
	pub        *Publisher
	groupAttrs []slog.Attr
}

func (h *republishHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *republishHandler) Handle(ctx context.Context, record slog.Record) error {
	attrs := make(map[string]any)
	var component string

	collect := func(a slog.Attr) bool {
		if a.Key == "component" {
			component, _ = a.Value.Any().(string)
		}
		attrs[a.Key] = a.Value.Any()
		return true
	}
	for _, a := range h.groupAttrs {
		collect(a)
	}
	record.Attrs(collect)

	h.pub.PublishLogEntry(LogEntry{
		Time:      record.Time,
		Level:     record.Level.String(),
		Message:   record.Message,
		Component: component,
		Attrs:     attrs,
	})

	return h.next.Handle(ctx, record)
}

func (h *republishHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.groupAttrs)+len(attrs))
	merged = append(merged, h.groupAttrs...)
	merged = append(merged, attrs...)
	return &republishHandler{next: h.next.WithAttrs(attrs), pub: h.pub, groupAttrs: merged}
}

func (h *republishHandler) WithGroup(name string) slog.Handler {
	return &republishHandler{next: h.next.WithGroup(name), pub: h.pub, groupAttrs: h.groupAttrs}
}
