package middleware

import (
	"log/slog"
	"time"

	"authsvc/internal/lib/sl"

	"github.com/gofiber/fiber/v2"
)

// RequestLogger logs one line per request once the rest of the chain ran.
func RequestLogger(logger *slog.Logger) fiber.Handler {
	log := logger.With(slog.String("component", "middleware/logger"))

	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", c.Response().StatusCode()),
			slog.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
			slog.Duration("duration", time.Since(start)),
		}
		if err != nil {
			log.Error("request failed", append(attrs, sl.Err(err))...)
			return err
		}

		log.Info("request completed", attrs...)

		return nil
	}
}
