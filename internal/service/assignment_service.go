package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-classroom-api/internal/dto"
	"github.com/noah-isme/gema-classroom-api/internal/models"
	"github.com/noah-isme/gema-classroom-api/internal/repository"
)

// AssignmentService exposes assignment authoring and browsing use cases.
type AssignmentService interface {
	Create(ctx context.Context, actor ActivityActor, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error)
	Get(ctx context.Context, actor ActivityActor, id uint) (dto.AssignmentResponse, error)
	List(ctx context.Context, actor ActivityActor, filter dto.AssignmentFilter) (dto.AssignmentListResponse, error)
	UpdateStatus(ctx context.Context, actor ActivityActor, id uint, payload dto.AssignmentStatusUpdateRequest) (dto.AssignmentResponse, error)
	RegeneratePin(ctx context.Context, actor ActivityActor, id uint) (dto.AssignmentResponse, error)
	ListForStudent(ctx context.Context, studentID uint) ([]dto.StudentAssignmentResponse, error)
	GetForStudent(ctx context.Context, id, studentID uint) (dto.StudentAssignmentResponse, error)
}

type assignmentService struct {
	repo      repository.AssignmentRepository
	students  repository.StudentRepository
	validator *validator.Validate
	pins      PinGenerator
	activity  ActivityRecorder
	cache     *redis.Client
	cacheTTL  time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAssignmentService builds a new assignment service.
func NewAssignmentService(repo repository.AssignmentRepository, students repository.StudentRepository, validate *validator.Validate, pins PinGenerator, activity ActivityRecorder, cache *redis.Client, cacheTTL time.Duration, logger zerolog.Logger) AssignmentService {
	if pins == nil {
		pins = RandomPinGenerator()
	}
	return &assignmentService{
		repo:      repo,
		students:  students,
		validator: validate,
		pins:      pins,
		activity:  activity,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger.With().Str("component", "assignment_service").Logger(),
		now:       time.Now,
	}
}

func (s *assignmentService) Create(ctx context.Context, actor ActivityActor, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}
	if actor.ID == 0 {
		return dto.AssignmentResponse{}, ErrMissingTeacher
	}

	deadline, err := dto.ParseTimestamp(payload.Deadline)
	if err != nil {
		return dto.AssignmentResponse{}, invalidAssignment("deadline: %v", err)
	}
	visibleFrom, err := dto.ParseTimestamp(payload.VisibleFrom)
	if err != nil {
		return dto.AssignmentResponse{}, invalidAssignment("visible_from: %v", err)
	}

	assignment := models.Assignment{
		Title:           strings.TrimSpace(payload.Title),
		Subject:         strings.TrimSpace(payload.Subject),
		Description:     payload.Description,
		TeacherID:       actor.ID,
		ClassID:         payload.ClassID,
		Mode:            models.AssignmentMode(payload.Mode),
		DurationMinutes: payload.DurationMinutes,
		Deadline:        deadline,
		VisibleFrom:     visibleFrom,
	}

	switch assignment.Mode {
	case models.AssignmentModeLive:
		if assignment.DurationMinutes == nil || *assignment.DurationMinutes <= 0 {
			return dto.AssignmentResponse{}, invalidAssignment("LIVE assignments require duration_minutes")
		}
		if assignment.Deadline != nil {
			return dto.AssignmentResponse{}, invalidAssignment("LIVE assignments cannot carry a deadline")
		}
		pin, err := s.pins.NewPin()
		if err != nil {
			return dto.AssignmentResponse{}, err
		}
		assignment.AccessPin = pin
		assignment.Status = models.AssignmentStatusDraft
	case models.AssignmentModeHomework:
		if assignment.Deadline == nil {
			return dto.AssignmentResponse{}, invalidAssignment("HOMEWORK assignments require a deadline")
		}
		if assignment.DurationMinutes != nil {
			return dto.AssignmentResponse{}, invalidAssignment("HOMEWORK assignments cannot carry duration_minutes")
		}
		assignment.Status = models.AssignmentStatusActive
	}

	if payload.Status != nil {
		assignment.Status = models.AssignmentStatus(*payload.Status)
	}

	questions, err := buildQuestions(payload.Questions)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	assignment.Questions = questions

	if err := s.repo.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().
		Uint("assignment_id", assignment.ID).
		Uint("teacher_id", assignment.TeacherID).
		Str("mode", string(assignment.Mode)).
		Int("questions", len(assignment.Questions)).
		Msg("assignment created")

	s.recordActivity(ctx, actor, "assignment.created", assignment.ID, fmt.Sprintf("created %s assignment %q", strings.ToLower(string(assignment.Mode)), assignment.Title))

	return dto.NewAssignmentResponse(assignment), nil
}

func buildQuestions(payload []dto.QuestionCreateRequest) ([]models.Question, error) {
	questions := make([]models.Question, 0, len(payload))
	positions := make(map[int]struct{}, len(payload))

	for idx, item := range payload {
		question := models.Question{
			Prompt:     strings.TrimSpace(item.Prompt),
			AnswerType: models.AnswerType(item.AnswerType),
			Points:     models.DefaultQuestionPoints,
			Position:   item.Position,
		}
		if item.Points != nil {
			question.Points = *item.Points
		}
		if question.Position == 0 {
			question.Position = idx + 1
		}
		if _, taken := positions[question.Position]; taken {
			return nil, invalidAssignment("duplicate question position %d", question.Position)
		}
		positions[question.Position] = struct{}{}

		if question.AnswerType == models.AnswerTypeMultipleChoice {
			key := strings.TrimSpace(item.CorrectAnswer)
			if key == "" {
				return nil, invalidAssignment("question %d requires a correct_answer", question.Position)
			}
			if len(item.Choices) < 2 {
				return nil, invalidAssignment("question %d requires at least two choices", question.Position)
			}
			question.CorrectAnswer = key
			question.Choices = models.EncodeChoices(item.Choices)
		}

		questions = append(questions, question)
	}

	return questions, nil
}

func (s *assignmentService) Get(ctx context.Context, actor ActivityActor, id uint) (dto.AssignmentResponse, error) {
	assignment, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) List(ctx context.Context, actor ActivityActor, filter dto.AssignmentFilter) (dto.AssignmentListResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return dto.AssignmentListResponse{}, err
	}

	repoFilter := repository.AssignmentFilter{
		Search:   filter.Search,
		Sort:     filter.Sort,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}
	if !actor.IsAdmin() {
		teacherID := actor.ID
		repoFilter.TeacherID = &teacherID
	}
	if filter.Status != nil {
		status := models.AssignmentStatus(*filter.Status)
		repoFilter.Status = &status
	}

	assignments, total, err := s.repo.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return dto.AssignmentListResponse{}, err
	}

	pagination := dto.PaginationMeta{
		Page:       maxInt(filter.Page, 1),
		PageSize:   filter.PageSize,
		TotalItems: total,
		TotalPages: 1,
	}
	if filter.PageSize > 0 {
		pagination.TotalPages = int(math.Ceil(float64(total) / float64(filter.PageSize)))
	}

	return dto.AssignmentListResponse{
		Items:      dto.NewAssignmentResponseSlice(assignments),
		Pagination: pagination,
	}, nil
}

func (s *assignmentService) UpdateStatus(ctx context.Context, actor ActivityActor, id uint, payload dto.AssignmentStatusUpdateRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	status := models.AssignmentStatus(payload.Status)
	if assignment.Status == status {
		return dto.NewAssignmentResponse(assignment), nil
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}
		return dto.AssignmentResponse{}, err
	}

	previous := assignment.Status
	assignment.Status = status
	s.invalidateStudentView(ctx, id)

	s.logger.Info().
		Uint("assignment_id", id).
		Str("from", string(previous)).
		Str("to", string(status)).
		Msg("assignment status changed")
	s.recordActivity(ctx, actor, "assignment.status_changed", id, fmt.Sprintf("status %s -> %s", previous, status))

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) RegeneratePin(ctx context.Context, actor ActivityActor, id uint) (dto.AssignmentResponse, error) {
	assignment, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	if !assignment.IsLive() {
		return dto.AssignmentResponse{}, invalidAssignment("only LIVE assignments carry an access pin")
	}

	pin, err := s.pins.NewPin()
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	if err := s.repo.UpdatePin(ctx, id, pin); err != nil {
		return dto.AssignmentResponse{}, err
	}
	assignment.AccessPin = pin

	s.recordActivity(ctx, actor, "assignment.pin_rotated", id, "access pin regenerated")

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) ListForStudent(ctx context.Context, studentID uint) ([]dto.StudentAssignmentResponse, error) {
	classID, err := resolveStudentClass(ctx, s.students, studentID)
	if err != nil {
		return nil, err
	}

	assignments, err := s.repo.ListVisible(ctx, classID, s.now())
	if err != nil {
		return nil, err
	}

	return dto.NewStudentAssignmentResponseSlice(assignments), nil
}

func (s *assignmentService) GetForStudent(ctx context.Context, id, studentID uint) (dto.StudentAssignmentResponse, error) {
	view, cached := s.readStudentView(ctx, id)
	if !cached {
		assignment, err := s.repo.GetWithQuestions(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.StudentAssignmentResponse{}, ErrAssignmentNotFound
			}
			return dto.StudentAssignmentResponse{}, err
		}
		view = dto.NewStudentAssignmentResponse(assignment)
		s.writeStudentView(ctx, id, view)
	}

	if view.Status == string(models.AssignmentStatusDraft) {
		return dto.StudentAssignmentResponse{}, ErrAssignmentNotFound
	}
	if view.VisibleFrom != nil && s.now().Before(*view.VisibleFrom) {
		return dto.StudentAssignmentResponse{}, ErrAssignmentNotFound
	}

	classID, err := resolveStudentClass(ctx, s.students, studentID)
	if err != nil {
		return dto.StudentAssignmentResponse{}, err
	}
	if !models.SharedWithClass(view.ClassID, classID) {
		return dto.StudentAssignmentResponse{}, ErrAssignmentNotFound
	}

	return view, nil
}

func (s *assignmentService) loadOwned(ctx context.Context, actor ActivityActor, id uint) (models.Assignment, error) {
	assignment, err := s.repo.GetWithQuestions(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, err
	}
	if !actor.IsAdmin() && assignment.TeacherID != actor.ID {
		return models.Assignment{}, ErrNotOwner
	}
	return assignment, nil
}

func studentViewKey(id uint) string {
	return fmt.Sprintf("assignment:student-view:%d", id)
}

func (s *assignmentService) readStudentView(ctx context.Context, id uint) (dto.StudentAssignmentResponse, bool) {
	if s.cache == nil {
		return dto.StudentAssignmentResponse{}, false
	}

	cached, err := s.cache.Get(ctx, studentViewKey(id)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Uint("assignment_id", id).Msg("failed to read assignment cache")
		}
		return dto.StudentAssignmentResponse{}, false
	}

	var view dto.StudentAssignmentResponse
	if err := json.Unmarshal([]byte(cached), &view); err != nil {
		return dto.StudentAssignmentResponse{}, false
	}
	s.logger.Debug().Uint("assignment_id", id).Msg("assignment cache hit")
	return view, true
}

func (s *assignmentService) writeStudentView(ctx context.Context, id uint, view dto.StudentAssignmentResponse) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(view)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, studentViewKey(id), payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("assignment_id", id).Msg("failed to store assignment cache")
	}
}

func (s *assignmentService) invalidateStudentView(ctx context.Context, id uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, studentViewKey(id)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("assignment_id", id).Msg("failed to invalidate assignment cache")
	}
}

func (s *assignmentService) recordActivity(ctx context.Context, actor ActivityActor, action string, assignmentID uint, description string) {
	if s.activity == nil {
		return
	}
	entityID := assignmentID
	if _, err := s.activity.Record(ctx, ActivityEntry{
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
		Action:      action,
		EntityType:  "assignment",
		EntityID:    &entityID,
		Description: description,
	}); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Uint("assignment_id", assignmentID).Msg("failed to record activity")
	}
}
