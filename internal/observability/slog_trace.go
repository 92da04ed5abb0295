package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// traceHandler stamps every record logged with a span-carrying context with
// trace_id and span_id, so log lines can be joined to the exported trace.
type traceHandler struct {
	slog.Handler
}

func withTraceIDs(next slog.Handler) slog.Handler {
	if _, ok := next.(traceHandler); ok {
		return next
	}
	return traceHandler{Handler: next}
}

func (h traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
		if !sc.IsSampled() {
			r.AddAttrs(slog.Bool("trace_sampled", false))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h traceHandler) WithGroup(name string) slog.Handler {
	return traceHandler{Handler: h.Handler.WithGroup(name)}
}
