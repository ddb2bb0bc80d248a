package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/labtrace_backend/internal/service/traceability"
)

type PreparationHandler struct {
	svc traceability.Service
}

func NewPreparationHandler(svc traceability.Service) *PreparationHandler {
	return &PreparationHandler{svc: svc}
}

// GET /preparation-requests
func (h *PreparationHandler) List(c fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))

	res, err := h.svc.SearchPreparations(c.Context(), page, c.Query("q"))
	if err != nil {
		return failure(c, err)
	}
	return envelope(c, res)
}
