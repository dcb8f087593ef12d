package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// AssignmentMode selects the temporal discipline applied to an assignment.
type AssignmentMode string

// AssignmentStatus tracks whether students may attempt an assignment.
type AssignmentStatus string

// AnswerType distinguishes auto-gradable questions from teacher-graded ones.
type AnswerType string

const (
	// AssignmentModeLive is a timed quiz protected by an access PIN.
	AssignmentModeLive AssignmentMode = "LIVE"
	// AssignmentModeHomework is bound by a submission deadline.
	AssignmentModeHomework AssignmentMode = "HOMEWORK"

	AssignmentStatusDraft  AssignmentStatus = "DRAFT"
	AssignmentStatusActive AssignmentStatus = "ACTIVE"
	AssignmentStatusClosed AssignmentStatus = "CLOSED"

	AnswerTypeMultipleChoice AnswerType = "MULTIPLE_CHOICE"
	AnswerTypeEssay          AnswerType = "ESSAY"

	// DefaultQuestionPoints is used when a question is created without explicit points.
	DefaultQuestionPoints = 10
)

// Assignment represents a quiz or homework published by a teacher.
type Assignment struct {
	ID              uint             `gorm:"primaryKey" json:"id"`
	Title           string           `gorm:"size:255;not null" json:"title"`
	Subject         string           `gorm:"size:128;not null" json:"subject"`
	Description     string           `gorm:"type:text" json:"description"`
	TeacherID       uint             `gorm:"not null;index" json:"teacher_id"`
	ClassID         *uint            `gorm:"index" json:"class_id"`
	Mode            AssignmentMode   `gorm:"size:16;not null" json:"mode"`
	Status          AssignmentStatus `gorm:"size:16;not null;index" json:"status"`
	DurationMinutes *int             `json:"duration_minutes"`
	Deadline        *time.Time       `json:"deadline"`
	VisibleFrom     *time.Time       `json:"visible_from"`
	AccessPin       string           `gorm:"size:6" json:"-"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	Questions       []Question       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"questions,omitempty"`
}

// IsLive reports whether the assignment is a timed, PIN-gated quiz.
func (a Assignment) IsLive() bool {
	return a.Mode == AssignmentModeLive
}

// IsPastDeadline returns true when a homework deadline has already passed.
func (a Assignment) IsPastDeadline(reference time.Time) bool {
	if a.Mode != AssignmentModeHomework || a.Deadline == nil {
		return false
	}
	return reference.After(*a.Deadline)
}

// IsAssignedTo reports whether students of classID may see the assignment.
func (a Assignment) IsAssignedTo(classID *uint) bool {
	return SharedWithClass(a.ClassID, classID)
}

// SharedWithClass matches an assignment class against a student class.
// Assignments without a class are shared by every class.
func SharedWithClass(assignmentClass, studentClass *uint) bool {
	if assignmentClass == nil {
		return true
	}
	return studentClass != nil && *assignmentClass == *studentClass
}

// IsVisible reports whether students may see the assignment at the reference time.
func (a Assignment) IsVisible(reference time.Time) bool {
	return a.VisibleFrom == nil || !reference.Before(*a.VisibleFrom)
}

// Question is a single item of an assignment.
type Question struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	AssignmentID  uint           `gorm:"not null;uniqueIndex:uq_question_assignment_position,priority:1" json:"assignment_id"`
	Prompt        string         `gorm:"type:text;not null" json:"prompt"`
	AnswerType    AnswerType     `gorm:"size:32;not null" json:"answer_type"`
	Choices       datatypes.JSON `json:"choices"`
	CorrectAnswer string         `gorm:"size:512" json:"-"`
	Points        int            `gorm:"not null;default:10" json:"points"`
	Position      int            `gorm:"not null;uniqueIndex:uq_question_assignment_position,priority:2" json:"position"`
	CreatedAt     time.Time      `json:"created_at"`
}

// IsEssay reports whether the question requires manual grading.
func (q Question) IsEssay() bool {
	return q.AnswerType == AnswerTypeEssay
}

// ChoiceList decodes the stored choices.
func (q Question) ChoiceList() []string {
	if len(q.Choices) == 0 {
		return nil
	}
	var choices []string
	if err := json.Unmarshal(q.Choices, &choices); err != nil {
		return nil
	}
	return choices
}

// EncodeChoices serialises choices for storage.
func EncodeChoices(choices []string) datatypes.JSON {
	if len(choices) == 0 {
		return nil
	}
	payload, err := json.Marshal(choices)
	if err != nil {
		return nil
	}
	return datatypes.JSON(payload)
}
