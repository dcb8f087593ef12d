package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-classroom-api/internal/dto"
	"github.com/noah-isme/gema-classroom-api/internal/models"
	"github.com/noah-isme/gema-classroom-api/internal/repository"
)

// StudentService manages the class roster and guardian links.
type StudentService interface {
	List(ctx context.Context, req dto.StudentListRequest) (dto.StudentListResponse, error)
	Get(ctx context.Context, id uint) (dto.StudentResponse, error)
	Create(ctx context.Context, payload dto.StudentCreateRequest, actor ActivityActor) (dto.StudentResponse, error)
	Update(ctx context.Context, id uint, payload dto.StudentUpdateRequest, actor ActivityActor) (dto.StudentResponse, error)
}

type studentService struct {
	repo      repository.StudentRepository
	validator *validator.Validate
	activity  ActivityRecorder
	logger    zerolog.Logger
}

// NewStudentService constructs the roster service.
func NewStudentService(repo repository.StudentRepository, validator *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) StudentService {
	return &studentService{
		repo:      repo,
		validator: validator,
		activity:  activity,
		logger:    logger.With().Str("component", "student_service").Logger(),
	}
}

func (s *studentService) List(ctx context.Context, req dto.StudentListRequest) (dto.StudentListResponse, error) {
	filter := repository.StudentFilter{
		Search:   strings.TrimSpace(req.Search),
		ClassID:  req.ClassID,
		Sort:     req.Sort,
		Page:     req.Page,
		PageSize: req.PageSize,
	}

	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.StudentListResponse{}, err
	}

	responses := make([]dto.StudentResponse, 0, len(students))
	for _, student := range students {
		responses = append(responses, dto.NewStudentResponse(student))
	}

	pagination := dto.PaginationMeta{
		Page:       maxInt(req.Page, 1),
		PageSize:   req.PageSize,
		TotalItems: total,
		TotalPages: 1,
	}
	if req.PageSize > 0 {
		pagination.TotalPages = int(math.Ceil(float64(total) / float64(req.PageSize)))
	}

	return dto.StudentListResponse{Items: responses, Pagination: pagination}, nil
}

func (s *studentService) Get(ctx context.Context, id uint) (dto.StudentResponse, error) {
	student, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentResponse{}, ErrStudentNotFound
		}
		return dto.StudentResponse{}, err
	}

	return dto.NewStudentResponse(student), nil
}

func (s *studentService) Create(ctx context.Context, payload dto.StudentCreateRequest, actor ActivityActor) (dto.StudentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.StudentResponse{}, err
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if err := s.ensureEmailAvailable(ctx, email, 0); err != nil {
		return dto.StudentResponse{}, err
	}

	student := models.Student{
		Name:           strings.TrimSpace(payload.Name),
		Email:          email,
		ClassID:        payload.ClassID,
		GuardianUserID: payload.GuardianUserID,
	}
	if err := s.repo.Create(ctx, &student); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.StudentResponse{}, ErrStudentEmailTaken
		}
		return dto.StudentResponse{}, err
	}

	s.record(ctx, actor, "student.created", student.ID, map[string]interface{}{
		"student_id": student.ID,
		"class_id":   student.ClassID,
	})

	return dto.NewStudentResponse(student), nil
}

func (s *studentService) Update(ctx context.Context, id uint, payload dto.StudentUpdateRequest, actor ActivityActor) (dto.StudentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.StudentResponse{}, err
	}

	updates := make(map[string]interface{})
	changedFields := make([]string, 0)

	if payload.Name != nil {
		updates["name"] = strings.TrimSpace(*payload.Name)
		changedFields = append(changedFields, "name")
	}
	if payload.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*payload.Email))
		if err := s.ensureEmailAvailable(ctx, email, id); err != nil {
			return dto.StudentResponse{}, err
		}
		updates["email"] = email
		changedFields = append(changedFields, "email")
	}
	if payload.ClassID != nil {
		updates["class_id"] = *payload.ClassID
		changedFields = append(changedFields, "class_id")
	}
	if payload.GuardianUserID != nil {
		updates["guardian_user_id"] = *payload.GuardianUserID
		changedFields = append(changedFields, "guardian_user_id")
	}

	if len(updates) == 0 {
		return s.Get(ctx, id)
	}

	student, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return dto.StudentResponse{}, ErrStudentNotFound
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return dto.StudentResponse{}, ErrStudentEmailTaken
		}
		return dto.StudentResponse{}, err
	}

	s.record(ctx, actor, "student.updated", id, map[string]interface{}{
		"student_id": id,
		"fields":     changedFields,
	})

	return dto.NewStudentResponse(student), nil
}

func (s *studentService) ensureEmailAvailable(ctx context.Context, email string, owner uint) error {
	existing, err := s.repo.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != owner:
		return ErrStudentEmailTaken
	}
	return nil
}

func (s *studentService) record(ctx context.Context, actor ActivityActor, action string, id uint, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}
	entityID := id
	if _, err := s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "student",
		EntityID:   &entityID,
		Metadata:   metadata,
	}); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Uint("student_id", id).Msg("failed to record roster activity")
	}
}

// resolveStudentClass returns the roster class of a student. Students missing
// from the roster have no class.
func resolveStudentClass(ctx context.Context, students repository.StudentRepository, studentID uint) (*uint, error) {
	if students == nil {
		return nil, nil
	}
	student, err := students.GetByID(ctx, studentID)
	switch {
	case err == nil:
		return student.ClassID, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	}
	return nil, err
}
