package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/reporting-service/internal/api/dto"
	"github.com/spec-kit/reporting-service/internal/domain"
	"github.com/spec-kit/reporting-service/internal/queue"
	apperrors "github.com/spec-kit/reporting-service/pkg/util"
)

// ReportsHandler exposes admin report-export endpoints.
type ReportsHandler struct {
	queue *queue.Queue
}

// NewReportsHandler constructs the handler.
func NewReportsHandler(q *queue.Queue) *ReportsHandler {
	return &ReportsHandler{queue: q}
}

// ExportUsers handles POST /admin/reports/users.
func (h *ReportsHandler) ExportUsers(c *fiber.Ctx) error {
	payload := fiber.Map{"date": nil}
	if date := c.Query("date"); date != "" {
		payload["date"] = date
	}

	job, err := h.queue.Enqueue(c.UserContext(), domain.ReportJobUsersCSV, payload)
	if err != nil {
		return err
	}
	return respond(c, http.StatusAccepted, dto.ExportResponse{JobID: job.ID})
}

// JobStatus handles GET /admin/reports/jobs/:id.
func (h *ReportsHandler) JobStatus(c *fiber.Ctx) error {
	status, err := h.queue.GetStatus(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			return apperrors.NewJobNotFound()
		}
		return err
	}
	return respond(c, http.StatusOK, dto.JobStatusResponse{
		State:        string(status.State),
		Attempts:     status.Attempts,
		FailedReason: status.FailedReason,
		ReturnValue:  status.ReturnValue,
	})
}
