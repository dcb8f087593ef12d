package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-classroom-api/internal/service"
	"github.com/noah-isme/gema-classroom-api/internal/utils"
)

// GradeBookHandler lists a student's grade book entries.
type GradeBookHandler struct {
	service service.GradeBookService
	logger  zerolog.Logger
}

// NewGradeBookHandler constructs the grade book handler.
func NewGradeBookHandler(service service.GradeBookService, logger zerolog.Logger) *GradeBookHandler {
	return &GradeBookHandler{
		service: service,
		logger:  logger.With().Str("component", "gradebook_handler").Logger(),
	}
}

// List returns the authenticated student's grades, optionally filtered by ?subject=.
func (h *GradeBookHandler) List(c *fiber.Ctx) error {
	records, err := h.service.ListForStudent(withRequestContext(c), userIDFromContext(c), strings.TrimSpace(c.Query("subject")))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "grades retrieved", records)
}
