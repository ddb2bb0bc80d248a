package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/labtrace_backend/internal/service/specimen"
)

type SpecimenHandler struct {
	svc specimen.Service
}

func NewSpecimenHandler(svc specimen.Service) *SpecimenHandler {
	return &SpecimenHandler{svc: svc}
}

func mapSpecimenError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, specimen.ErrSpecimenIDRequired):
		return badRequest(c, err.Error())
	case errors.Is(err, specimen.ErrSpecimenExists):
		return conflict(c, err.Error())
	default:
		return failure(c, err)
	}
}

// POST /specimens
func (h *SpecimenHandler) Create(c fiber.Ctx) error {
	var body struct {
		SpecimenID string `json:"specimen_id"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	sp, err := h.svc.Create(c.Context(), body.SpecimenID)
	if err != nil {
		return mapSpecimenError(c, err)
	}
	return created(c, sp)
}

// GET /specimens/exists
func (h *SpecimenHandler) Exists(c fiber.Ctx) error {
	exists, err := h.svc.Exists(c.Context(), c.Query("specimen_id"))
	if err != nil {
		return mapSpecimenError(c, err)
	}
	return ok(c, fiber.Map{"exists": exists})
}
