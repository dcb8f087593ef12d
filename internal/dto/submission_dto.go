package dto

import (
	"time"

	"github.com/noah-isme/gema-classroom-api/internal/models"
)

// StartAttemptRequest carries the optional access PIN for LIVE assignments.
type StartAttemptRequest struct {
	Pin *string `json:"pin" validate:"omitempty,max=16"`
}

// AnswerRequest captures one answer to one question.
type AnswerRequest struct {
	QuestionID uint   `json:"question_id" validate:"required,gt=0"`
	Response   string `json:"response" validate:"max=20000"`
}

// FinalizeRequest is sent when the student submits the attempt.
type FinalizeRequest struct {
	ArtifactURL string `json:"artifact_url" validate:"omitempty,url,max=512"`
	Notes       string `json:"notes" validate:"omitempty,max=2000"`
}

// AnswerGradeRequest assigns points to a single answer.
type AnswerGradeRequest struct {
	AnswerID uint `json:"answer_id" validate:"required,gt=0"`
	Points   int  `json:"points" validate:"gte=0"`
}

// GradeRequest grades a submission either holistically or per answer.
type GradeRequest struct {
	OverallScore *int                 `json:"overall_score"`
	Answers      []AnswerGradeRequest `json:"answers" validate:"omitempty,dive"`
	Notes        *string              `json:"notes" validate:"omitempty,max=2000"`
}

// SubmissionFilter describes query string filters for listing submissions.
type SubmissionFilter struct {
	AssignmentID *uint `query:"assignment_id"`
	StudentID    *uint `query:"student_id"`
	Submitted    *bool `query:"submitted"`
}

// AnswerResponse is the serialized representation of an answer.
type AnswerResponse struct {
	ID         uint       `json:"id"`
	QuestionID uint       `json:"question_id"`
	Response   string     `json:"response"`
	IsCorrect  *bool      `json:"is_correct"`
	Points     int        `json:"points"`
	GradedAt   *time.Time `json:"graded_at"`
}

// AssignmentLite summarizes an assignment in submission responses.
type AssignmentLite struct {
	ID       uint       `json:"id"`
	Title    string     `json:"title"`
	Subject  string     `json:"subject"`
	Mode     string     `json:"mode"`
	Deadline *time.Time `json:"deadline"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID           uint             `json:"id"`
	AssignmentID uint             `json:"assignment_id"`
	StudentID    uint             `json:"student_id"`
	State        string           `json:"state"`
	MaxScore     int              `json:"max_score"`
	RawScore     int              `json:"raw_score"`
	FinalGrade   *int             `json:"final_grade"`
	StartedAt    time.Time        `json:"started_at"`
	EndsAt       *time.Time       `json:"ends_at"`
	SubmittedAt  *time.Time       `json:"submitted_at"`
	GradedAt     *time.Time       `json:"graded_at"`
	GradedBy     *uint            `json:"graded_by"`
	ArtifactURL  string           `json:"artifact_url"`
	Notes        string           `json:"notes"`
	Answers      []AnswerResponse `json:"answers"`
	Assignment   *AssignmentLite  `json:"assignment,omitempty"`
}

// NewAnswerResponse converts an Answer model into a DTO.
func NewAnswerResponse(model models.Answer) AnswerResponse {
	return AnswerResponse{
		ID:         model.ID,
		QuestionID: model.QuestionID,
		Response:   model.Response,
		IsCorrect:  model.IsCorrect,
		Points:     model.Points,
		GradedAt:   model.GradedAt,
	}
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:           model.ID,
		AssignmentID: model.AssignmentID,
		StudentID:    model.StudentID,
		State:        model.State(),
		MaxScore:     model.MaxScore,
		RawScore:     model.RawScore,
		FinalGrade:   model.FinalGrade,
		StartedAt:    model.StartedAt,
		SubmittedAt:  model.SubmittedAt,
		GradedAt:     model.GradedAt,
		GradedBy:     model.GradedBy,
		ArtifactURL:  model.ArtifactURL,
		Notes:        model.Notes,
		Answers:      make([]AnswerResponse, 0, len(model.Answers)),
	}

	for _, answer := range model.Answers {
		response.Answers = append(response.Answers, NewAnswerResponse(answer))
	}

	if model.Assignment.ID != 0 {
		response.Assignment = &AssignmentLite{
			ID:       model.Assignment.ID,
			Title:    model.Assignment.Title,
			Subject:  model.Assignment.Subject,
			Mode:     string(model.Assignment.Mode),
			Deadline: model.Assignment.Deadline,
		}
		if model.Assignment.IsLive() && model.Assignment.DurationMinutes != nil {
			endsAt := model.StartedAt.Add(time.Duration(*model.Assignment.DurationMinutes) * time.Minute)
			response.EndsAt = &endsAt
		}
	}

	return response
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(models []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(models))
	for _, submission := range models {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}

// WithoutGrading hides per-answer correctness and points, used while the
// student's attempt is still in progress.
func (r SubmissionResponse) WithoutGrading() SubmissionResponse {
	answers := make([]AnswerResponse, 0, len(r.Answers))
	for _, answer := range r.Answers {
		answer.IsCorrect = nil
		answer.Points = 0
		answers = append(answers, answer)
	}
	r.Answers = answers
	r.RawScore = 0
	return r
}
