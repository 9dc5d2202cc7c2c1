package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

type TraceContext struct {
	TraceID string
	SpanID  string
}

// ExtractTrace pulls the current trace identifiers out of a context, or
// nil when the context carries no recording span.
func ExtractTrace(ctx context.Context) *TraceContext {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}

	sc := span.SpanContext()

	return &TraceContext{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
	}
}
