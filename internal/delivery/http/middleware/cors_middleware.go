package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/knadh/koanf/v2"
)

// SetupCORS configures CORS for the dashboard frontend. Game servers talk
// over the relay websocket and never hit CORS.
func SetupCORS(config *koanf.Koanf) fiber.Handler {
	origins := config.String("DASHBOARD_ORIGIN")
	if origins == "" {
		origins = "http://localhost:3000"
	}

	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		ExposeHeaders:    "Content-Length",
		MaxAge:           86400, // Pre-flight request can be cached for 1 day
	})
}
