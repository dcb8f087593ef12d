package models

import "time"

// Student represents a learner that can attempt assignments.
type Student struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	Email          string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	ClassID        *uint     `gorm:"index" json:"class_id"`
	GuardianUserID *uint     `json:"guardian_user_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
