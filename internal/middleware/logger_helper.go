package middleware

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// GetLoggerFromContext retrieves the trace-aware logger injected by
// TraceLoggerMiddleware. When tracing is disabled the middleware never
// runs, so the caller's own logger is returned instead.
func GetLoggerFromContext(c *fiber.Ctx, fallback *zap.Logger) *zap.Logger {
	loggerIf := c.Locals("logger")
	if loggerIf != nil {
		if logger, ok := loggerIf.(*zap.Logger); ok {
			return logger
		}
	}

	return fallback
}
