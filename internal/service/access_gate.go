package service

import (
	"time"

	"github.com/noah-isme/gema-classroom-api/internal/models"
)

// CheckAccess decides whether a student may start the assignment. A nil
// result allows the attempt; otherwise the error is an *AccessDeniedError.
// The PIN is compared verbatim.
func CheckAccess(assignment models.Assignment, pin *string, now time.Time) error {
	if assignment.Status != models.AssignmentStatusActive {
		return denyAccess(DenialNotActive)
	}

	switch assignment.Mode {
	case models.AssignmentModeLive:
		// An empty PIN counts as missing; the PIN is never trimmed or normalized.
		if pin == nil || *pin == "" {
			return denyAccess(DenialPinRequired)
		}
		if *pin != assignment.AccessPin {
			return denyAccess(DenialInvalidPin)
		}
	case models.AssignmentModeHomework:
		if assignment.IsPastDeadline(now) {
			return denyAccess(DenialDeadlinePassed)
		}
	}

	return nil
}

// checkSubmitWindow re-validates status and deadline when an attempt is finalized.
func checkSubmitWindow(assignment models.Assignment, now time.Time) error {
	if assignment.Status != models.AssignmentStatusActive {
		return denyAccess(DenialNotActive)
	}
	if assignment.IsPastDeadline(now) {
		return denyAccess(DenialDeadlinePassed)
	}
	return nil
}
