package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/labtrace_backend/internal/api/http/handler"
)

func (r *Router) registerPreparationRoutes(api fiber.Router, h *handler.PreparationHandler) {
	api.Get("/preparation-requests", h.List)
}
