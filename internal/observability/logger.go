package observability

import (
	"context"

	"go.uber.org/zap"
)

// WithContext decorates a logger with the trace identifiers of the given
// context. Relay and background work use this; HTTP handlers get theirs
// from the fiber middleware instead.
func WithContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	tc := ExtractTrace(ctx)
	if tc == nil {
		return logger
	}

	return logger.With(
		zap.String("trace_id", tc.TraceID),
		zap.String("span_id", tc.SpanID),
	)
}
