package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-classroom-api/internal/dto"
	"github.com/noah-isme/gema-classroom-api/internal/models"
	"github.com/noah-isme/gema-classroom-api/internal/repository"
)

// AssignmentReportService aggregates attempt statistics for a teacher's assignment.
type AssignmentReportService interface {
	GetReport(ctx context.Context, actor ActivityActor, assignmentID uint) (dto.AssignmentReportResponse, error)
}

type assignmentReportService struct {
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAssignmentReportService constructs the report service.
func NewAssignmentReportService(assignments repository.AssignmentRepository, submissions repository.SubmissionRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) AssignmentReportService {
	return &assignmentReportService{
		assignments: assignments,
		submissions: submissions,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "assignment_report_service").Logger(),
		now:         time.Now,
	}
}

func (s *assignmentReportService) GetReport(ctx context.Context, actor ActivityActor, assignmentID uint) (dto.AssignmentReportResponse, error) {
	cacheKey := fmt.Sprintf("assignment:report:%d", assignmentID)
	tracer := otel.Tracer("github.com/noah-isme/gema-classroom-api/internal/service/assignment_report")
	ctx, span := tracer.Start(ctx, "report.aggregate")
	span.SetAttributes(attribute.String("report.cache_key", cacheKey))
	defer span.End()

	assignment, err := s.assignments.GetWithQuestions(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentReportResponse{}, ErrAssignmentNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "assignment_lookup_failed")
		return dto.AssignmentReportResponse{}, err
	}
	if !actor.IsAdmin() && assignment.TeacherID != actor.ID {
		return dto.AssignmentReportResponse{}, ErrNotOwner
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey).Result()
		if err == nil {
			var response dto.AssignmentReportResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				span.SetAttributes(attribute.Bool("report.cache_hit", true))
				return response, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Uint("assignment_id", assignmentID).Msg("failed to read report cache")
			span.RecordError(err)
		}
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{AssignmentID: &assignment.ID})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_submissions_failed")
		return dto.AssignmentReportResponse{}, err
	}

	report := s.buildReport(assignment, submissions)
	span.SetAttributes(
		attribute.Int64("report.started", report.Started),
		attribute.Int64("report.submitted", report.Submitted),
	)

	if s.cache != nil {
		payload, err := json.Marshal(report)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Uint("assignment_id", assignmentID).Msg("failed to store report cache")
				span.RecordError(err)
			}
		}
	}

	return report, nil
}

func (s *assignmentReportService) buildReport(assignment models.Assignment, submissions []models.Submission) dto.AssignmentReportResponse {
	distribution := dto.GradeDistributionResponse{
		"90-100": 0,
		"75-89":  0,
		"60-74":  0,
		"0-59":   0,
	}
	daily := map[time.Time]int64{}

	var submitted, graded int64
	gradeTotal := 0
	for _, submission := range submissions {
		if submission.SubmittedAt == nil {
			continue
		}
		submitted++
		daily[startOfDay(*submission.SubmittedAt)]++

		if submission.FinalGrade == nil {
			continue
		}
		graded++
		grade := *submission.FinalGrade
		gradeTotal += grade
		switch {
		case grade >= 90:
			distribution["90-100"]++
		case grade >= 75:
			distribution["75-89"]++
		case grade >= 60:
			distribution["60-74"]++
		default:
			distribution["0-59"]++
		}
	}

	days := make([]time.Time, 0, len(daily))
	for day := range daily {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	points := make([]dto.DailySubmissionPoint, 0, len(days))
	for _, day := range days {
		points = append(points, dto.DailySubmissionPoint{Day: day, Submissions: daily[day]})
	}

	report := dto.AssignmentReportResponse{
		AssignmentID:      assignment.ID,
		Title:             assignment.Title,
		Mode:              string(assignment.Mode),
		MaxScore:          MaxScore(assignment.Questions),
		Started:           int64(len(submissions)),
		Submitted:         submitted,
		Graded:            graded,
		AwaitingGrade:     submitted - graded,
		GradeDistribution: distribution,
		DailySubmissions:  points,
		GeneratedAt:       s.now(),
	}
	if graded > 0 {
		average := math.Round(float64(gradeTotal)/float64(graded)*100) / 100
		report.AverageGrade = &average
	}

	return report
}

func startOfDay(t time.Time) time.Time {
	utc := t.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}
