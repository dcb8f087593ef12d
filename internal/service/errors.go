package service

import (
	"errors"
	"fmt"
)

var (
	// ErrAssignmentNotFound indicates the assignment does not exist or is not visible.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrQuestionNotFound indicates the question does not belong to the assignment.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrSubmissionNotFound indicates a submission could not be found.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrAnswerNotFound indicates a graded answer is not part of the submission.
	ErrAnswerNotFound = errors.New("answer not found")
	// ErrAlreadySubmitted is returned when an attempt has already been finalized.
	ErrAlreadySubmitted = errors.New("submission already submitted")
	// ErrNotSubmitted is returned when grading an attempt that is still in progress.
	ErrNotSubmitted = errors.New("submission has not been submitted")
	// ErrNotOwner is returned when a teacher grades an assignment they did not create.
	ErrNotOwner = errors.New("teacher does not own this assignment")
	// ErrInvalidScore indicates a score outside the permitted range.
	ErrInvalidScore = errors.New("invalid score")
	// ErrInvalidGradeRequest indicates a grade payload that is neither overall nor per-answer.
	ErrInvalidGradeRequest = errors.New("grade request must contain either overall_score or answers")
	// ErrUngradedEssays indicates per-answer grading left essay answers without points.
	ErrUngradedEssays = errors.New("essay answers remain ungraded")
	// ErrInvalidAssignment indicates an assignment definition violating its mode invariants.
	ErrInvalidAssignment = errors.New("invalid assignment definition")
	// ErrMissingTeacher indicates the request carries no owning teacher.
	ErrMissingTeacher = errors.New("assignment requires an owning teacher")
	// ErrStudentNotFound indicates the student is not on the roster.
	ErrStudentNotFound = errors.New("student not found")
	// ErrStudentEmailTaken indicates another student already uses the email.
	ErrStudentEmailTaken = errors.New("student email already registered")
	// ErrNotificationNotFound indicates the notification does not exist for the user.
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrAccessDenied is the umbrella error matched by every AccessDeniedError.
	ErrAccessDenied = errors.New("access denied")
)

// AccessDenialReason enumerates why the access gate refused an attempt.
type AccessDenialReason string

const (
	DenialNotActive      AccessDenialReason = "NOT_ACTIVE"
	DenialPinRequired    AccessDenialReason = "PIN_REQUIRED"
	DenialInvalidPin     AccessDenialReason = "INVALID_PIN"
	DenialDeadlinePassed AccessDenialReason = "DEADLINE_PASSED"
)

// AccessDeniedError reports a refusal by the access gate.
type AccessDeniedError struct {
	Reason AccessDenialReason
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied: %s", e.Reason)
}

// Is makes errors.Is(err, ErrAccessDenied) succeed for every denial.
func (e *AccessDeniedError) Is(target error) bool {
	return target == ErrAccessDenied
}

func denyAccess(reason AccessDenialReason) error {
	return &AccessDeniedError{Reason: reason}
}

// DenialReason extracts the access gate reason from err, if any.
func DenialReason(err error) (AccessDenialReason, bool) {
	var denied *AccessDeniedError
	if errors.As(err, &denied) {
		return denied.Reason, true
	}
	return "", false
}

func invalidAssignment(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidAssignment, fmt.Sprintf(format, args...))
}
