package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/labtrace_backend/internal/api/http/handler"
)

func (r *Router) registerJobRoutes(api fiber.Router, h *handler.JobHandler) {
	jobs := api.Group("/jobs")
	jobs.Get("/", h.List)
	jobs.Get("/export", h.Export)
	jobs.Get("/:id/complete-info", h.CompleteInfo)
}
