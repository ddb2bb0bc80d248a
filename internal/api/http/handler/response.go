package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"
)

func ok(c fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"data": data})
}

func created(c fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": data})
}

// envelope writes a paginated list bare, without the data wrapper.
func envelope(c fiber.Ctx, page any) error {
	return c.JSON(page)
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func notFound(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": msg})
}

func conflict(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": msg})
}

func retryableConflict(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": msg, "retryable": true})
}

func serviceUnavailable(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": msg})
}

func gatewayTimeout(c fiber.Ctx) error {
	return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": "request timed out"})
}

func internalError(c fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}

// failure handles errors no sentinel mapping claimed.
func failure(c fiber.Ctx, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		slog.WarnContext(c.Context(), "request deadline exceeded", "path", c.Path())
		return gatewayTimeout(c)
	}
	slog.ErrorContext(c.Context(), "request failed", "path", c.Path(), "err", err)
	return internalError(c)
}
