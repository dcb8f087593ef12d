package models

import "time"

// GradeKindAssignment is the grade book category used for assignments.
const GradeKindAssignment = "tugas"

// GradeRecord is a permanent grade book entry.
type GradeRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	StudentID    uint      `gorm:"not null;index" json:"student_id"`
	TeacherID    uint      `gorm:"not null;index" json:"teacher_id"`
	SubmissionID *uint     `gorm:"index" json:"submission_id"`
	Subject      string    `gorm:"size:128;not null" json:"subject"`
	Kind         string    `gorm:"size:32;not null" json:"kind"`
	Score        int       `gorm:"not null" json:"score"`
	MaxScore     int       `gorm:"not null" json:"max_score"`
	Notes        string    `gorm:"type:text" json:"notes"`
	Date         time.Time `gorm:"not null" json:"date"`
	CreatedAt    time.Time `json:"created_at"`
}
