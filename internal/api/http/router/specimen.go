package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/labtrace_backend/internal/api/http/handler"
)

func (r *Router) registerSpecimenRoutes(api fiber.Router, h *handler.SpecimenHandler) {
	specimens := api.Group("/specimens")
	specimens.Post("/", h.Create)
	specimens.Get("/exists", h.Exists)
}
