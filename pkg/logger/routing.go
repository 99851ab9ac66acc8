package logger

import (
	"context"
	"log/slog"
)

// sink is one destination: a handler plus a predicate deciding whether a
// record belongs to it.
type sink struct {
	handler slog.Handler
	accept  func(level slog.Level, attrs map[string]string) bool
}

// routingHandler fans a record out to every sink whose predicate accepts it.
// Attributes added through WithAttrs are tracked so predicates see them too.
type routingHandler struct {
	sinks []sink
	attrs map[string]string
}

func (h *routingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range h.sinks {
		if s.handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *routingHandler) Handle(ctx context.Context, record slog.Record) error {
	attrs := make(map[string]string, len(h.attrs)+record.NumAttrs())
	for k, v := range h.attrs {
		attrs[k] = v
	}
	record.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.String()
		return true
	})

	var firstErr error
	for _, s := range h.sinks {
		if !s.accept(record.Level, attrs) {
			continue
		}
		if err := s.handler.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *routingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make(map[string]string, len(h.attrs)+len(attrs))
	for k, v := range h.attrs {
		merged[k] = v
	}
	for _, a := range attrs {
		merged[a.Key] = a.Value.String()
	}

	sinks := make([]sink, len(h.sinks))
	for i, s := range h.sinks {
		sinks[i] = sink{handler: s.handler.WithAttrs(attrs), accept: s.accept}
	}
	return &routingHandler{sinks: sinks, attrs: merged}
}

func (h *routingHandler) WithGroup(name string) slog.Handler {
	sinks := make([]sink, len(h.sinks))
	for i, s := range h.sinks {
		sinks[i] = sink{handler: s.handler.WithGroup(name), accept: s.accept}
	}
	return &routingHandler{sinks: sinks, attrs: h.attrs}
}
