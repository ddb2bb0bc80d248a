package middleware

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	fiberredis "github.com/gofiber/storage/redis/v3"
	"github.com/redis/go-redis/v9"

	"github.com/Alijeyrad/labtrace_backend/config"
)

// NewLimiter applies a sliding window per client IP. Counters live in
// Redis when a client is given, so the limit holds across replicas.
func NewLimiter(cfg config.RateLimitConfig, rdb *redis.Client) fiber.Handler {
	lc := limiter.Config{
		Max:               cfg.RequestsPerWindow,
		Expiration:        time.Duration(cfg.WindowSeconds) * time.Second,
		LimiterMiddleware: limiter.SlidingWindow{},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many requests"})
		},
	}
	if rdb != nil {
		lc.Storage = fiberredis.NewFromConnection(rdb)
	}
	return limiter.New(lc)
}
