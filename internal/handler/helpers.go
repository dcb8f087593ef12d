package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-classroom-api/internal/middleware"
	"github.com/noah-isme/gema-classroom-api/internal/service"
	"github.com/noah-isme/gema-classroom-api/internal/utils"
)

// Error codes returned in the error envelope.
const (
	codeValidation       = "VALIDATION_FAILED"
	codeNotFound         = "NOT_FOUND"
	codeAccessDenied     = "ACCESS_DENIED"
	codeAlreadySubmitted = "ALREADY_SUBMITTED"
	codeNotSubmitted     = "NOT_SUBMITTED"
	codeConflict         = "CONFLICT"
	codeInvalidInput     = "INVALID_INPUT"
	codePermissionDenied = "PERMISSION_DENIED"
	codeInternal         = "INTERNAL"
)

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	value := strings.TrimSpace(c.Params(name))
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid identifier")
	}
	return uint(parsed), nil
}

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok {
			if id < 0 {
				return 0
			}
			return uint(id)
		}
	}
	return 0
}

func userRoleFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_role"); v != nil {
		if role, ok := v.(string); ok {
			return role
		}
	}
	return ""
}

func userIDStringFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_id"); v != nil {
		switch id := v.(type) {
		case uint:
			return strconv.FormatUint(uint64(id), 10)
		case int:
			if id < 0 {
				return ""
			}
			return strconv.Itoa(id)
		case string:
			return strings.TrimSpace(id)
		case fmt.Stringer:
			return strings.TrimSpace(id.String())
		}
	}
	return ""
}

func activityActorFromContext(c *fiber.Ctx) service.ActivityActor {
	return service.ActivityActor{
		ID:   userIDFromContext(c),
		Role: userRoleFromContext(c),
	}
}

func withRequestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func validationDetails(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[fieldErr.Field()] = fieldErr.Tag()
	}
	return details
}

// respondError maps service errors onto HTTP statuses and the error envelope.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	if details := validationDetails(err); details != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", details)
	}

	if reason, ok := service.DenialReason(err); ok {
		return utils.SendErrorCode(c, fiber.StatusForbidden, err.Error(), codeAccessDenied, string(reason))
	}

	switch {
	case errors.Is(err, service.ErrAssignmentNotFound),
		errors.Is(err, service.ErrQuestionNotFound),
		errors.Is(err, service.ErrSubmissionNotFound),
		errors.Is(err, service.ErrAnswerNotFound),
		errors.Is(err, service.ErrStudentNotFound),
		errors.Is(err, service.ErrNotificationNotFound):
		return utils.SendErrorCode(c, fiber.StatusNotFound, err.Error(), codeNotFound, "")
	case errors.Is(err, service.ErrAlreadySubmitted):
		return utils.SendErrorCode(c, fiber.StatusConflict, err.Error(), codeAlreadySubmitted, "")
	case errors.Is(err, service.ErrStudentEmailTaken):
		return utils.SendErrorCode(c, fiber.StatusConflict, err.Error(), codeConflict, "")
	case errors.Is(err, service.ErrNotSubmitted):
		return utils.SendErrorCode(c, fiber.StatusConflict, err.Error(), codeNotSubmitted, "")
	case errors.Is(err, service.ErrNotOwner):
		return utils.SendErrorCode(c, fiber.StatusForbidden, err.Error(), codePermissionDenied, "")
	case errors.Is(err, service.ErrInvalidScore),
		errors.Is(err, service.ErrInvalidGradeRequest),
		errors.Is(err, service.ErrUngradedEssays),
		errors.Is(err, service.ErrInvalidAssignment),
		errors.Is(err, service.ErrMissingTeacher):
		return utils.SendErrorCode(c, fiber.StatusBadRequest, err.Error(), codeInvalidInput, "")
	}

	requestLogger(logger, c).Error().Err(err).Str("path", c.Path()).Msg("internal server error")
	return utils.SendErrorCode(c, fiber.StatusInternalServerError, "internal server error", codeInternal, "")
}

func badRequest(c *fiber.Ctx, message string) error {
	return utils.SendErrorCode(c, fiber.StatusBadRequest, message, codeInvalidInput, "")
}
