package dto

import (
	"time"

	"github.com/noah-isme/gema-classroom-api/internal/models"
)

// GradeRecordResponse is a grade book entry as returned to clients.
type GradeRecordResponse struct {
	ID           uint      `json:"id"`
	StudentID    uint      `json:"student_id"`
	TeacherID    uint      `json:"teacher_id"`
	SubmissionID *uint     `json:"submission_id"`
	Subject      string    `json:"subject"`
	Kind         string    `json:"kind"`
	Score        int       `json:"score"`
	MaxScore     int       `json:"max_score"`
	Notes        string    `json:"notes"`
	Date         time.Time `json:"date"`
}

// NewGradeRecordResponse converts a grade book model into its DTO.
func NewGradeRecordResponse(model models.GradeRecord) GradeRecordResponse {
	return GradeRecordResponse{
		ID:           model.ID,
		StudentID:    model.StudentID,
		TeacherID:    model.TeacherID,
		SubmissionID: model.SubmissionID,
		Subject:      model.Subject,
		Kind:         model.Kind,
		Score:        model.Score,
		MaxScore:     model.MaxScore,
		Notes:        model.Notes,
		Date:         model.Date,
	}
}
