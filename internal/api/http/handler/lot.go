package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/labtrace_backend/internal/service/lot"
	"github.com/Alijeyrad/labtrace_backend/internal/service/resolve"
	"github.com/Alijeyrad/labtrace_backend/internal/service/traceability"
)

type LotHandler struct {
	lots  lot.Service
	trace traceability.Service
}

func NewLotHandler(lots lot.Service, trace traceability.Service) *LotHandler {
	return &LotHandler{lots: lots, trace: trace}
}

func mapLotError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, lot.ErrJobRequired):
		return badRequest(c, err.Error())
	case errors.Is(err, resolve.ErrJobNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, lot.ErrDuplicateItemNo):
		return conflict(c, err.Error())
	case errors.Is(err, lot.ErrAllocationRace):
		return retryableConflict(c, err.Error())
	default:
		return failure(c, err)
	}
}

// GET /sample-lots
func (h *LotHandler) List(c fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))

	res, err := h.trace.ListSampleLots(c.Context(), page, c.Query("q"))
	if err != nil {
		return mapLotError(c, err)
	}
	return envelope(c, res)
}

// POST /sample-lots
func (h *LotHandler) Create(c fiber.Ctx) error {
	var body struct {
		JobID          string   `json:"job_id"`
		ItemNo         string   `json:"item_no"`
		Description    string   `json:"description"`
		TestMethodOIDs []string `json:"test_method_oids"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	l, err := h.lots.Create(c.Context(), lot.CreateRequest{
		JobID:          body.JobID,
		ItemNo:         body.ItemNo,
		Description:    body.Description,
		TestMethodOIDs: body.TestMethodOIDs,
	})
	if err != nil {
		return mapLotError(c, err)
	}
	return created(c, l)
}

// GET /sample-lots/next-item-no
func (h *LotHandler) NextItemNo(c fiber.Ctx) error {
	jobID := c.Query("job_id")

	next, err := h.lots.NextItemNo(c.Context(), jobID)
	if err != nil {
		return mapLotError(c, err)
	}
	return ok(c, fiber.Map{"job_id": jobID, "item_no": next})
}
