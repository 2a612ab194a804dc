package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
)

// AccessLog writes one structured record per request to logger.
// Mutating requests log at info, reads at debug.
func AccessLog(logger *slog.Logger) fiber.Handler {
	if logger == nil {
		logger = slog.Default().With("component", "http")
	}
	return func(c fiber.Ctx) error {
		start := time.Now()

		// Capture request data before the handler runs; fiber reuses ctx objects.
		method := c.Method()
		path := c.Path()
		ip := c.IP()

		err := c.Next()

		level := slog.LevelDebug
		if method != fiber.MethodGet && method != fiber.MethodHead {
			level = slog.LevelInfo
		}
		status := c.Response().StatusCode()
		if status >= fiber.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Context(), level, "http request",
			"method", method,
			"path", path,
			"status", status,
			"ip", ip,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return err
	}
}
