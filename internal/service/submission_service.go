package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-classroom-api/internal/dto"
	"github.com/noah-isme/gema-classroom-api/internal/models"
	"github.com/noah-isme/gema-classroom-api/internal/observability"
	"github.com/noah-isme/gema-classroom-api/internal/repository"
)

// SubmissionService drives a student's attempt from start to grading.
type SubmissionService interface {
	Start(ctx context.Context, assignmentID, studentID uint, payload dto.StartAttemptRequest) (dto.SubmissionResponse, bool, error)
	RecordAnswer(ctx context.Context, submissionID, studentID uint, payload dto.AnswerRequest) (dto.AnswerResponse, error)
	Finalize(ctx context.Context, submissionID, studentID uint, payload dto.FinalizeRequest) (dto.SubmissionResponse, error)
	Grade(ctx context.Context, submissionID uint, actor ActivityActor, payload dto.GradeRequest) (dto.SubmissionResponse, error)
	Get(ctx context.Context, submissionID uint, actor ActivityActor) (dto.SubmissionResponse, error)
	ListForAssignment(ctx context.Context, assignmentID uint, actor ActivityActor, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error)
}

type submissionService struct {
	repo        repository.SubmissionRepository
	assignments repository.AssignmentRepository
	students    repository.StudentRepository
	validator   *validator.Validate
	events      SubmissionEventDispatcher
	sanitizer   *bluemonday.Policy
	tracer      trace.Tracer
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSubmissionService constructs a submission tracker.
func NewSubmissionService(repo repository.SubmissionRepository, assignments repository.AssignmentRepository, students repository.StudentRepository, validate *validator.Validate, events SubmissionEventDispatcher, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		repo:        repo,
		assignments: assignments,
		students:    students,
		validator:   validate,
		events:      events,
		sanitizer:   bluemonday.StrictPolicy(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-classroom-api/internal/service/submission"),
		logger:      logger.With().Str("component", "submission_service").Logger(),
		now:         time.Now,
	}
}

func (s *submissionService) Start(ctx context.Context, assignmentID, studentID uint, payload dto.StartAttemptRequest) (dto.SubmissionResponse, bool, error) {
	ctx, span := s.tracer.Start(ctx, "submission.start", trace.WithAttributes(
		attribute.Int64("submission.assignment_id", int64(assignmentID)),
		attribute.Int64("submission.student_id", int64(studentID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, false, err
	}

	assignment, err := s.assignments.GetWithQuestions(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, false, ErrAssignmentNotFound
		}
		return dto.SubmissionResponse{}, false, failSpan(span, err, "assignment_lookup_failed")
	}

	now := s.now()
	if !assignment.IsVisible(now) {
		return dto.SubmissionResponse{}, false, ErrAssignmentNotFound
	}
	classID, err := resolveStudentClass(ctx, s.students, studentID)
	if err != nil {
		return dto.SubmissionResponse{}, false, failSpan(span, err, "student_lookup_failed")
	}
	if !assignment.IsAssignedTo(classID) {
		return dto.SubmissionResponse{}, false, ErrAssignmentNotFound
	}
	if err := CheckAccess(assignment, payload.Pin, now); err != nil {
		return dto.SubmissionResponse{}, false, s.denied(span, assignment, studentID, err)
	}

	submission := models.Submission{
		AssignmentID: assignment.ID,
		StudentID:    studentID,
		MaxScore:     MaxScore(assignment.Questions),
		StartedAt:    now,
	}
	created, err := s.repo.CreateIfAbsent(ctx, &submission)
	if err != nil {
		return dto.SubmissionResponse{}, false, failSpan(span, err, "submission_create_failed")
	}

	if !created {
		// Resume: keep the stored attempt, including its answers.
		submission, err = s.repo.GetByID(ctx, submission.ID)
		if err != nil {
			return dto.SubmissionResponse{}, false, failSpan(span, err, "submission_lookup_failed")
		}
	} else {
		observability.SubmissionEvents().WithLabelValues("started", string(assignment.Mode)).Inc()
		s.logger.Info().
			Uint("submission_id", submission.ID).
			Uint("assignment_id", assignment.ID).
			Uint("student_id", studentID).
			Msg("attempt started")
	}
	submission.Assignment = assignment

	span.SetAttributes(
		attribute.Int64("submission.id", int64(submission.ID)),
		attribute.Bool("submission.created", created),
	)

	return studentView(submission), created, nil
}

func (s *submissionService) RecordAnswer(ctx context.Context, submissionID, studentID uint, payload dto.AnswerRequest) (dto.AnswerResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.answer", trace.WithAttributes(
		attribute.Int64("submission.id", int64(submissionID)),
		attribute.Int64("submission.question_id", int64(payload.QuestionID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		return dto.AnswerResponse{}, err
	}

	submission, err := s.loadForStudent(ctx, submissionID, studentID)
	if err != nil {
		return dto.AnswerResponse{}, err
	}
	if submission.IsSubmitted() {
		return dto.AnswerResponse{}, ErrAlreadySubmitted
	}

	question, err := s.assignments.GetQuestion(ctx, submission.AssignmentID, payload.QuestionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AnswerResponse{}, ErrQuestionNotFound
		}
		return dto.AnswerResponse{}, failSpan(span, err, "question_lookup_failed")
	}

	isCorrect, points := GradeAnswer(question, payload.Response)
	answer := models.Answer{
		SubmissionID: submission.ID,
		QuestionID:   question.ID,
		Response:     payload.Response,
		IsCorrect:    isCorrect,
		Points:       points,
	}

	if err := s.repo.UpsertAnswer(ctx, &answer); err != nil {
		if errors.Is(err, repository.ErrSubmissionFinalized) {
			return dto.AnswerResponse{}, ErrAlreadySubmitted
		}
		return dto.AnswerResponse{}, failSpan(span, err, "answer_upsert_failed")
	}

	observability.SubmissionEvents().WithLabelValues("answered", string(submission.Assignment.Mode)).Inc()

	response := dto.NewAnswerResponse(answer)
	response.IsCorrect = nil
	response.Points = 0
	return response, nil
}

func (s *submissionService) Finalize(ctx context.Context, submissionID, studentID uint, payload dto.FinalizeRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.finalize", trace.WithAttributes(
		attribute.Int64("submission.id", int64(submissionID)),
		attribute.Int64("submission.student_id", int64(studentID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.loadForStudent(ctx, submissionID, studentID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if submission.IsSubmitted() {
		return dto.SubmissionResponse{}, ErrAlreadySubmitted
	}

	assignment, err := s.assignments.GetWithQuestions(ctx, submission.AssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrAssignmentNotFound
		}
		return dto.SubmissionResponse{}, failSpan(span, err, "assignment_lookup_failed")
	}

	now := s.now()
	if err := checkSubmitWindow(assignment, now); err != nil {
		return dto.SubmissionResponse{}, s.denied(span, assignment, studentID, err)
	}

	autograde := !HasEssay(assignment.Questions)
	artifactURL := strings.TrimSpace(payload.ArtifactURL)
	notes := strings.TrimSpace(s.sanitizer.Sanitize(payload.Notes))

	finalized, err := s.repo.Finalize(ctx, submission.ID, func(current models.Submission, answers []models.Answer) (models.Submission, error) {
		current.RawScore = RawScore(answers)
		if autograde {
			grade := FinalGrade(current.RawScore, current.MaxScore)
			current.FinalGrade = &grade
			current.GradedAt = &now
		}
		current.SubmittedAt = &now
		current.ArtifactURL = artifactURL
		current.Notes = notes
		return current, nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrSubmissionFinalized) {
			return dto.SubmissionResponse{}, ErrAlreadySubmitted
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, failSpan(span, err, "submission_finalize_failed")
	}
	finalized.Assignment = assignment

	mode := string(assignment.Mode)
	observability.SubmissionEvents().WithLabelValues("submitted", mode).Inc()
	if finalized.FinalGrade != nil {
		observability.FinalGrades().WithLabelValues(mode).Observe(float64(*finalized.FinalGrade))
	}
	span.SetAttributes(
		attribute.Int("submission.raw_score", finalized.RawScore),
		attribute.Bool("submission.autograded", autograde),
	)

	s.logger.Info().
		Uint("submission_id", finalized.ID).
		Uint("assignment_id", assignment.ID).
		Uint("student_id", studentID).
		Int("raw_score", finalized.RawScore).
		Int("max_score", finalized.MaxScore).
		Bool("autograded", autograde).
		Msg("attempt submitted")

	if s.events != nil {
		s.events.Dispatch(ctx, SubmissionEvent{
			Kind:        SubmissionEventSubmitted,
			Submission:  finalized,
			Assignment:  assignment,
			Actor:       ActivityActor{ID: studentID, Role: RoleStudent},
			RecordGrade: finalized.FinalGrade != nil,
		})
	}

	return dto.NewSubmissionResponse(finalized), nil
}

func (s *submissionService) Grade(ctx context.Context, submissionID uint, actor ActivityActor, payload dto.GradeRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.grade", trace.WithAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, err
	}

	overall := payload.OverallScore != nil
	if overall == (len(payload.Answers) > 0) {
		return dto.SubmissionResponse{}, ErrInvalidGradeRequest
	}
	if overall && (*payload.OverallScore < 0 || *payload.OverallScore > 100) {
		return dto.SubmissionResponse{}, ErrInvalidScore
	}

	submission, err := s.repo.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, failSpan(span, err, "submission_lookup_failed")
	}

	assignment, err := s.assignments.GetWithQuestions(ctx, submission.AssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrAssignmentNotFound
		}
		return dto.SubmissionResponse{}, failSpan(span, err, "assignment_lookup_failed")
	}
	if !actor.IsAdmin() && assignment.TeacherID != actor.ID {
		span.SetStatus(codes.Error, "not_owner")
		return dto.SubmissionResponse{}, ErrNotOwner
	}
	if !submission.IsSubmitted() {
		return dto.SubmissionResponse{}, ErrNotSubmitted
	}

	questions := make(map[uint]models.Question, len(assignment.Questions))
	for _, question := range assignment.Questions {
		questions[question.ID] = question
	}

	now := s.now()
	graderID := actor.ID
	var notes *string
	if payload.Notes != nil {
		cleaned := strings.TrimSpace(s.sanitizer.Sanitize(*payload.Notes))
		notes = &cleaned
	}

	graded, err := s.repo.ApplyGrade(ctx, submission.ID, func(current models.Submission, answers []models.Answer) (models.Submission, []models.Answer, error) {
		if current.SubmittedAt == nil {
			return current, nil, ErrNotSubmitted
		}

		var changed []models.Answer
		if overall {
			grade := *payload.OverallScore
			current.FinalGrade = &grade
		} else {
			var err error
			answers, changed, err = applyAnswerPoints(answers, payload.Answers, questions, graderID, now)
			if err != nil {
				return current, nil, err
			}
			current.RawScore = RawScore(answers)
			grade := FinalGrade(current.RawScore, current.MaxScore)
			current.FinalGrade = &grade
		}

		current.GradedAt = &now
		current.GradedBy = &graderID
		if notes != nil {
			current.Notes = *notes
		}
		return current, changed, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		case errors.Is(err, ErrNotSubmitted),
			errors.Is(err, ErrAnswerNotFound),
			errors.Is(err, ErrInvalidScore),
			errors.Is(err, ErrUngradedEssays):
			span.SetStatus(codes.Error, err.Error())
			return dto.SubmissionResponse{}, err
		}
		return dto.SubmissionResponse{}, failSpan(span, err, "submission_grade_failed")
	}
	graded.Assignment = assignment

	mode := string(assignment.Mode)
	observability.SubmissionEvents().WithLabelValues("graded", mode).Inc()
	observability.FinalGrades().WithLabelValues(mode).Observe(float64(*graded.FinalGrade))
	span.SetAttributes(
		attribute.Int("grading.final_grade", *graded.FinalGrade),
		attribute.Bool("grading.overall", overall),
	)

	s.logger.Info().
		Uint("submission_id", graded.ID).
		Uint("assignment_id", assignment.ID).
		Uint("grader_id", graderID).
		Int("final_grade", *graded.FinalGrade).
		Bool("overall", overall).
		Msg("submission graded")

	if s.events != nil {
		s.events.Dispatch(ctx, SubmissionEvent{
			Kind:        SubmissionEventGraded,
			Submission:  graded,
			Assignment:  assignment,
			Actor:       actor,
			RecordGrade: true,
		})
	}

	return dto.NewSubmissionResponse(graded), nil
}

// applyAnswerPoints overwrites the points of the named answers and returns the
// full answer set alongside the answers that changed. Every essay answer must
// carry a grade afterwards.
func applyAnswerPoints(answers []models.Answer, grades []dto.AnswerGradeRequest, questions map[uint]models.Question, graderID uint, now time.Time) ([]models.Answer, []models.Answer, error) {
	index := make(map[uint]int, len(answers))
	for i, answer := range answers {
		index[answer.ID] = i
	}

	changed := make([]models.Answer, 0, len(grades))
	for _, grade := range grades {
		i, ok := index[grade.AnswerID]
		if !ok {
			return nil, nil, ErrAnswerNotFound
		}
		answer := answers[i]
		question, ok := questions[answer.QuestionID]
		if !ok {
			return nil, nil, ErrQuestionNotFound
		}
		if grade.Points < 0 || grade.Points > question.Points {
			return nil, nil, ErrInvalidScore
		}

		answer.Points = grade.Points
		if !question.IsEssay() {
			correct := grade.Points == question.Points
			answer.IsCorrect = &correct
		}
		answer.GradedAt = &now
		answer.GradedBy = &graderID
		answers[i] = answer
		changed = append(changed, answer)
	}

	for _, answer := range answers {
		question, ok := questions[answer.QuestionID]
		if ok && question.IsEssay() && answer.GradedAt == nil {
			return nil, nil, ErrUngradedEssays
		}
	}

	return answers, changed, nil
}

func (s *submissionService) Get(ctx context.Context, submissionID uint, actor ActivityActor) (dto.SubmissionResponse, error) {
	submission, err := s.repo.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	switch {
	case strings.EqualFold(actor.Role, RoleStudent):
		if submission.StudentID != actor.ID {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return studentView(submission), nil
	case actor.IsAdmin():
	case submission.Assignment.TeacherID != actor.ID:
		return dto.SubmissionResponse{}, ErrNotOwner
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) ListForAssignment(ctx context.Context, assignmentID uint, actor ActivityActor, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}
	if !actor.IsAdmin() && assignment.TeacherID != actor.ID {
		return nil, ErrNotOwner
	}

	submissions, err := s.repo.List(ctx, repository.SubmissionFilter{
		AssignmentID: &assignment.ID,
		StudentID:    filter.StudentID,
		Submitted:    filter.Submitted,
	})
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

// loadForStudent returns the submission when it belongs to studentID. Other
// students' attempts are reported as missing.
func (s *submissionService) loadForStudent(ctx context.Context, submissionID, studentID uint) (models.Submission, error) {
	submission, err := s.repo.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}
	if submission.StudentID != studentID {
		return models.Submission{}, ErrSubmissionNotFound
	}
	return submission, nil
}

func (s *submissionService) denied(span trace.Span, assignment models.Assignment, studentID uint, err error) error {
	reason, _ := DenialReason(err)
	observability.AccessDenied().WithLabelValues(string(reason)).Inc()
	span.SetAttributes(attribute.String("access.denied", string(reason)))
	s.logger.Info().
		Uint("assignment_id", assignment.ID).
		Uint("student_id", studentID).
		Str("reason", string(reason)).
		Msg("access denied")
	return err
}

func studentView(submission models.Submission) dto.SubmissionResponse {
	response := dto.NewSubmissionResponse(submission)
	if !submission.IsSubmitted() {
		return response.WithoutGrading()
	}
	return response
}

func failSpan(span trace.Span, err error, status string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, status)
	return err
}
