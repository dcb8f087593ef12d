package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-classroom-api/internal/service"
	"github.com/noah-isme/gema-classroom-api/internal/utils"
)

// AssignmentReportHandler exposes per-assignment statistics for teachers.
type AssignmentReportHandler struct {
	service service.AssignmentReportService
	logger  zerolog.Logger
}

// NewAssignmentReportHandler constructs the handler.
func NewAssignmentReportHandler(service service.AssignmentReportService, logger zerolog.Logger) *AssignmentReportHandler {
	return &AssignmentReportHandler{
		service: service,
		logger:  logger.With().Str("component", "assignment_report_handler").Logger(),
	}
}

// Register attaches report routes to the teacher router group.
func (h *AssignmentReportHandler) Register(router fiber.Router) {
	router.Get("/assignments/:id/report", h.get)
}

func (h *AssignmentReportHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	report, err := h.service.GetReport(withRequestContext(c), activityActorFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "assignment report", report)
}
