package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-classroom-api/internal/dto"
	"github.com/noah-isme/gema-classroom-api/internal/models"
	"github.com/noah-isme/gema-classroom-api/internal/repository"
)

// GradeBookRecorder writes permanent grade book entries for graded submissions.
type GradeBookRecorder interface {
	RecordAssignmentGrade(ctx context.Context, submission models.Submission, assignment models.Assignment) error
}

// GradeBookService records and lists grade book entries.
type GradeBookService interface {
	GradeBookRecorder
	ListForStudent(ctx context.Context, studentID uint, subject string) ([]dto.GradeRecordResponse, error)
}

type gradeBookService struct {
	repo   repository.GradeRecordRepository
	logger zerolog.Logger
	now    func() time.Time
}

// NewGradeBookService constructs the grade book service.
func NewGradeBookService(repo repository.GradeRecordRepository, logger zerolog.Logger) GradeBookService {
	return &gradeBookService{
		repo:   repo,
		logger: logger.With().Str("component", "gradebook_service").Logger(),
		now:    time.Now,
	}
}

// RecordAssignmentGrade appends a "tugas" entry scored on the 0-100 final grade.
// Submissions without a final grade are skipped.
func (s *gradeBookService) RecordAssignmentGrade(ctx context.Context, submission models.Submission, assignment models.Assignment) error {
	if submission.FinalGrade == nil {
		return nil
	}

	teacherID := assignment.TeacherID
	if submission.GradedBy != nil {
		teacherID = *submission.GradedBy
	}

	date := s.now()
	if submission.GradedAt != nil {
		date = *submission.GradedAt
	}

	submissionID := submission.ID
	record := models.GradeRecord{
		StudentID:    submission.StudentID,
		TeacherID:    teacherID,
		SubmissionID: &submissionID,
		Subject:      assignment.Subject,
		Kind:         models.GradeKindAssignment,
		Score:        *submission.FinalGrade,
		MaxScore:     100,
		Notes:        assignment.Title,
		Date:         date,
	}

	if err := s.repo.Create(ctx, &record); err != nil {
		return err
	}

	s.logger.Debug().
		Uint("submission_id", submission.ID).
		Uint("student_id", submission.StudentID).
		Int("score", record.Score).
		Msg("grade book entry recorded")

	return nil
}

func (s *gradeBookService) ListForStudent(ctx context.Context, studentID uint, subject string) ([]dto.GradeRecordResponse, error) {
	records, err := s.repo.List(ctx, repository.GradeRecordFilter{
		StudentID: &studentID,
		Subject:   subject,
	})
	if err != nil {
		return nil, err
	}

	responses := make([]dto.GradeRecordResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, dto.NewGradeRecordResponse(record))
	}
	return responses, nil
}
