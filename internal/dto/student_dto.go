package dto

import (
	"time"

	"github.com/noah-isme/gema-classroom-api/internal/models"
)

// StudentCreateRequest enrolls a student on the roster.
type StudentCreateRequest struct {
	Name           string `json:"name" validate:"required,min=2,max=255"`
	Email          string `json:"email" validate:"required,email,max=255"`
	ClassID        *uint  `json:"class_id" validate:"omitempty,gt=0"`
	GuardianUserID *uint  `json:"guardian_user_id" validate:"omitempty,gt=0"`
}

// StudentUpdateRequest carries partial roster updates.
type StudentUpdateRequest struct {
	Name           *string `json:"name" validate:"omitempty,min=2,max=255"`
	Email          *string `json:"email" validate:"omitempty,email,max=255"`
	ClassID        *uint   `json:"class_id" validate:"omitempty,gt=0"`
	GuardianUserID *uint   `json:"guardian_user_id" validate:"omitempty,gt=0"`
}

// StudentListRequest captures roster query parameters.
type StudentListRequest struct {
	Search   string
	ClassID  *uint
	Sort     string
	Page     int
	PageSize int
}

// StudentResponse is the roster representation of a student.
type StudentResponse struct {
	ID             uint      `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	ClassID        *uint     `json:"class_id"`
	GuardianUserID *uint     `json:"guardian_user_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// StudentListResponse wraps a paginated roster.
type StudentListResponse struct {
	Items      []StudentResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// NewStudentResponse maps the model to its roster representation.
func NewStudentResponse(model models.Student) StudentResponse {
	return StudentResponse{
		ID:             model.ID,
		Name:           model.Name,
		Email:          model.Email,
		ClassID:        model.ClassID,
		GuardianUserID: model.GuardianUserID,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
}

// StudentDashboardResponse aggregates assignment progress for a student.
type StudentDashboardResponse struct {
	Summary           ProgressSummary      `json:"summary"`
	Pending           []AssignmentProgress `json:"pending_assignments"`
	RecentSubmissions []SubmissionActivity `json:"recent_submissions"`
}

// ProgressSummary captures aggregated statistics for the dashboard.
type ProgressSummary struct {
	TotalAssignments int     `json:"total_assignments"`
	NotStarted       int     `json:"not_started"`
	InProgress       int     `json:"in_progress"`
	Submitted        int     `json:"submitted"`
	Graded           int     `json:"graded"`
	Overdue          int     `json:"overdue"`
	AverageGrade     float64 `json:"average_grade"`
	CompletionRate   float64 `json:"completion_rate"`
}

// AssignmentProgress describes the state of a single assignment relative to a student.
type AssignmentProgress struct {
	AssignmentID uint       `json:"assignment_id"`
	Title        string     `json:"title"`
	Subject      string     `json:"subject"`
	Mode         string     `json:"mode"`
	Deadline     *time.Time `json:"deadline"`
	RequiresPin  bool       `json:"requires_pin"`
	State        string     `json:"state"`
	SubmissionID *uint      `json:"submission_id"`
	Overdue      bool       `json:"overdue"`
}

// SubmissionActivity details a recent submission of the student.
type SubmissionActivity struct {
	SubmissionID   uint       `json:"submission_id"`
	AssignmentID   uint       `json:"assignment_id"`
	AssignmentName string     `json:"assignment_name"`
	State          string     `json:"state"`
	FinalGrade     *int       `json:"final_grade"`
	SubmittedAt    *time.Time `json:"submitted_at"`
	GradedAt       *time.Time `json:"graded_at"`
}
