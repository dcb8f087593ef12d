package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-classroom-api/internal/dto"
	"github.com/noah-isme/gema-classroom-api/internal/models"
	"github.com/noah-isme/gema-classroom-api/internal/repository"
)

const recentSubmissionLimit = 5

// StudentDashboardService produces aggregated progress for one student.
type StudentDashboardService interface {
	GetDashboard(ctx context.Context, studentID uint) (dto.StudentDashboardResponse, error)
}

type studentDashboardService struct {
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	students    repository.StudentRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewStudentDashboardService builds the dashboard aggregator.
func NewStudentDashboardService(assignments repository.AssignmentRepository, submissions repository.SubmissionRepository, students repository.StudentRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) StudentDashboardService {
	return &studentDashboardService{
		assignments: assignments,
		submissions: submissions,
		students:    students,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "student_dashboard_service").Logger(),
		now:         time.Now,
	}
}

func dashboardKey(studentID uint) string {
	return fmt.Sprintf("dashboard:student:%d", studentID)
}

func (s *studentDashboardService) GetDashboard(ctx context.Context, studentID uint) (dto.StudentDashboardResponse, error) {
	cacheKey := dashboardKey(studentID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.StudentDashboardResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Uint("student_id", studentID).Msg("dashboard cache hit")
				return response, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read dashboard cache")
		}
	}

	classID, err := resolveStudentClass(ctx, s.students, studentID)
	if err != nil {
		return dto.StudentDashboardResponse{}, err
	}

	now := s.now()
	assignments, err := s.assignments.ListVisible(ctx, classID, now)
	if err != nil {
		return dto.StudentDashboardResponse{}, err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{StudentID: &studentID})
	if err != nil {
		return dto.StudentDashboardResponse{}, err
	}

	response := buildDashboard(assignments, submissions, now)

	if s.cache != nil && s.cacheTTL > 0 {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store dashboard cache")
			}
		}
	}

	return response, nil
}

// buildDashboard folds the visible assignments and the student's attempts
// into one summary. Attempts on assignments that are no longer visible still
// count towards the totals.
func buildDashboard(assignments []models.Assignment, submissions []models.Submission, now time.Time) dto.StudentDashboardResponse {
	submissionByAssignment := make(map[uint]models.Submission, len(submissions))
	for _, submission := range submissions {
		submissionByAssignment[submission.AssignmentID] = submission
	}

	summary := dto.ProgressSummary{}
	pending := make([]dto.AssignmentProgress, 0)
	seen := make(map[uint]struct{}, len(assignments))
	var gradeTotal, gradedCount int

	tally := func(submission models.Submission) {
		switch submission.State() {
		case models.SubmissionStateGraded:
			summary.Graded++
			gradeTotal += *submission.FinalGrade
			gradedCount++
		case models.SubmissionStateSubmitted:
			summary.Submitted++
		default:
			summary.InProgress++
		}
	}

	for _, assignment := range assignments {
		seen[assignment.ID] = struct{}{}
		summary.TotalAssignments++

		progress := dto.AssignmentProgress{
			AssignmentID: assignment.ID,
			Title:        assignment.Title,
			Subject:      assignment.Subject,
			Mode:         string(assignment.Mode),
			Deadline:     assignment.Deadline,
			RequiresPin:  assignment.IsLive(),
			State:        "not_started",
		}

		submission, started := submissionByAssignment[assignment.ID]
		if started {
			tally(submission)
			id := submission.ID
			progress.SubmissionID = &id
			progress.State = submission.State()
			if submission.IsSubmitted() {
				continue
			}
		} else {
			summary.NotStarted++
		}

		if assignment.IsPastDeadline(now) {
			progress.Overdue = true
			summary.Overdue++
		}
		pending = append(pending, progress)
	}

	for _, submission := range submissions {
		if _, ok := seen[submission.AssignmentID]; ok {
			continue
		}
		summary.TotalAssignments++
		tally(submission)
	}

	if gradedCount > 0 {
		summary.AverageGrade = roundTo(float64(gradeTotal)/float64(gradedCount), 2)
	}
	if summary.TotalAssignments > 0 {
		done := summary.Submitted + summary.Graded
		summary.CompletionRate = roundTo(float64(done)/float64(summary.TotalAssignments)*100, 2)
	}

	recent := make([]dto.SubmissionActivity, 0, recentSubmissionLimit)
	for _, submission := range submissions {
		if len(recent) == recentSubmissionLimit {
			break
		}
		if !submission.IsSubmitted() {
			continue
		}
		recent = append(recent, dto.SubmissionActivity{
			SubmissionID:   submission.ID,
			AssignmentID:   submission.AssignmentID,
			AssignmentName: submission.Assignment.Title,
			State:          submission.State(),
			FinalGrade:     submission.FinalGrade,
			SubmittedAt:    submission.SubmittedAt,
			GradedAt:       submission.GradedAt,
		})
	}

	return dto.StudentDashboardResponse{
		Summary:           summary,
		Pending:           pending,
		RecentSubmissions: recent,
	}
}

func roundTo(value float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(value*factor) / factor
}
