package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/labtrace_backend/internal/service/export"
	"github.com/Alijeyrad/labtrace_backend/internal/service/traceability"
)

type JobHandler struct {
	svc    traceability.Service
	export export.Service
}

func NewJobHandler(svc traceability.Service, exp export.Service) *JobHandler {
	return &JobHandler{svc: svc, export: exp}
}

func mapTraceabilityError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, traceability.ErrJobNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, export.ErrArchiveDisabled):
		return serviceUnavailable(c, err.Error())
	default:
		return failure(c, err)
	}
}

// GET /jobs
func (h *JobHandler) List(c fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))

	res, err := h.svc.ListJobs(c.Context(), page, c.Query("q"))
	if err != nil {
		return mapTraceabilityError(c, err)
	}
	return envelope(c, res)
}

// GET /jobs/:id/complete-info
func (h *JobHandler) CompleteInfo(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "job id is required")
	}

	info, err := h.svc.JobCompleteInfo(c.Context(), id)
	if err != nil {
		return mapTraceabilityError(c, err)
	}
	return ok(c, info)
}

// GET /jobs/export
func (h *JobHandler) Export(c fiber.Ctx) error {
	q := c.Query("q")

	if archive, _ := strconv.ParseBool(c.Query("archive")); archive {
		a, err := h.export.Archive(c.Context(), q)
		if err != nil {
			return mapTraceabilityError(c, err)
		}
		return created(c, a)
	}

	buf, err := h.export.Workbook(c.Context(), q)
	if err != nil {
		return mapTraceabilityError(c, err)
	}
	c.Attachment(h.export.Filename())
	c.Set(fiber.HeaderContentType, export.ContentType)
	return c.Send(buf.Bytes())
}
