package models

import "time"

// Submission is one student's attempt on one assignment.
type Submission struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	AssignmentID uint       `gorm:"not null;uniqueIndex:uq_submission_assignment_student,priority:1" json:"assignment_id"`
	StudentID    uint       `gorm:"not null;uniqueIndex:uq_submission_assignment_student,priority:2;index" json:"student_id"`
	MaxScore     int        `gorm:"not null;default:0" json:"max_score"`
	RawScore     int        `gorm:"not null;default:0" json:"raw_score"`
	FinalGrade   *int       `json:"final_grade"`
	StartedAt    time.Time  `gorm:"not null" json:"started_at"`
	SubmittedAt  *time.Time `gorm:"index" json:"submitted_at"`
	GradedAt     *time.Time `json:"graded_at"`
	GradedBy     *uint      `json:"graded_by"`
	ArtifactURL  string     `gorm:"size:512" json:"artifact_url"`
	Notes        string     `gorm:"type:text" json:"notes"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Assignment   Assignment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assignment"`
	Answers      []Answer   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"answers,omitempty"`
}

const (
	SubmissionStateInProgress = "in_progress"
	SubmissionStateSubmitted  = "submitted"
	SubmissionStateGraded     = "graded"
)

// IsSubmitted reports whether the attempt has been finalized.
func (s Submission) IsSubmitted() bool {
	return s.SubmittedAt != nil
}

// IsGraded reports whether the submission has a final grade.
func (s Submission) IsGraded() bool {
	return s.FinalGrade != nil
}

// State derives the lifecycle state used by clients.
func (s Submission) State() string {
	switch {
	case s.IsSubmitted() && s.IsGraded():
		return SubmissionStateGraded
	case s.IsSubmitted():
		return SubmissionStateSubmitted
	default:
		return SubmissionStateInProgress
	}
}

// Answer is a student's response to a single question.
type Answer struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	SubmissionID uint       `gorm:"not null;uniqueIndex:uq_answer_submission_question,priority:1" json:"submission_id"`
	QuestionID   uint       `gorm:"not null;uniqueIndex:uq_answer_submission_question,priority:2" json:"question_id"`
	Response     string     `gorm:"type:text" json:"response"`
	IsCorrect    *bool      `json:"is_correct"`
	Points       int        `gorm:"not null;default:0" json:"points"`
	GradedAt     *time.Time `json:"graded_at"`
	GradedBy     *uint      `json:"graded_by"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
