package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-classroom-api/internal/dto"
	"github.com/noah-isme/gema-classroom-api/internal/service"
	"github.com/noah-isme/gema-classroom-api/internal/utils"
)

// StudentAssignmentHandler exposes assignment browsing and attempt start for students.
type StudentAssignmentHandler struct {
	assignments service.AssignmentService
	submissions service.SubmissionService
	logger      zerolog.Logger
}

// NewStudentAssignmentHandler constructs the handler.
func NewStudentAssignmentHandler(assignments service.AssignmentService, submissions service.SubmissionService, logger zerolog.Logger) *StudentAssignmentHandler {
	return &StudentAssignmentHandler{
		assignments: assignments,
		submissions: submissions,
		logger:      logger.With().Str("component", "student_assignment_handler").Logger(),
	}
}

// Register attaches the student assignment routes.
func (h *StudentAssignmentHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Post("/:id/start", h.start)
}

func (h *StudentAssignmentHandler) list(c *fiber.Ctx) error {
	assignments, err := h.assignments.ListForStudent(withRequestContext(c), userIDFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "assignments retrieved", assignments)
}

func (h *StudentAssignmentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	assignment, err := h.assignments.GetForStudent(withRequestContext(c), id, userIDFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "assignment retrieved", assignment)
}

func (h *StudentAssignmentHandler) start(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var payload dto.StartAttemptRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return badRequest(c, "invalid request body")
		}
	}

	submission, created, err := h.submissions.Start(withRequestContext(c), id, userIDFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	if created {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "attempt started", submission)
	}
	return utils.SendSuccess(c, "attempt resumed", submission)
}
