package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/labtrace_backend/internal/api/http/handler"
)

func (r *Router) registerLotRoutes(api fiber.Router, h *handler.LotHandler) {
	lots := api.Group("/sample-lots")
	lots.Get("/", h.List)
	lots.Post("/", h.Create)
	lots.Get("/next-item-no", h.NextItemNo)
}
