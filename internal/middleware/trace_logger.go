package middleware

import (
	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TraceLoggerMiddleware injects trace and span ids into a request-scoped
// logger so dashboard request logs correlate with their traces.
func TraceLoggerMiddleware(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		span := trace.SpanFromContext(c.UserContext())
		spanContext := span.SpanContext()

		traceLogger := logger.With(
			zap.String("trace_id", spanContext.TraceID().String()),
			zap.String("span_id", spanContext.SpanID().String()),
		)

		c.Locals("logger", traceLogger)

		return c.Next()
	}
}
