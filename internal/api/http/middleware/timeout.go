package middleware

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/timeout"
)

// Timeout bounds the request context for the rest of the chain. A handler
// still running at the deadline is answered with 504.
func Timeout(d time.Duration) fiber.Handler {
	return timeout.New(func(c fiber.Ctx) error {
		return c.Next()
	}, timeout.Config{
		Timeout: d,
		Errors:  []error{context.DeadlineExceeded},
		OnTimeout: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": "request timed out"})
		},
	})
}
