package dto

import "time"

// GradeDistributionResponse counts final grades per bucket.
type GradeDistributionResponse map[string]int64

// DailySubmissionPoint counts submissions finalized on one UTC day.
type DailySubmissionPoint struct {
	Day         time.Time `json:"day"`
	Submissions int64     `json:"submissions"`
}

// AssignmentReportResponse summarizes attempt progress and grades for one assignment.
type AssignmentReportResponse struct {
	AssignmentID      uint                      `json:"assignment_id"`
	Title             string                    `json:"title"`
	Mode              string                    `json:"mode"`
	MaxScore          int                       `json:"max_score"`
	Started           int64                     `json:"started"`
	Submitted         int64                     `json:"submitted"`
	Graded            int64                     `json:"graded"`
	AwaitingGrade     int64                     `json:"awaiting_grade"`
	AverageGrade      *float64                  `json:"average_grade"`
	GradeDistribution GradeDistributionResponse `json:"grade_distribution"`
	DailySubmissions  []DailySubmissionPoint    `json:"daily_submissions"`
	GeneratedAt       time.Time                 `json:"generated_at"`
	CacheHit          bool                      `json:"cache_hit"`
}
