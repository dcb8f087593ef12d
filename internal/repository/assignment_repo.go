package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-classroom-api/internal/models"
)

// AssignmentFilter describes pagination & search options.
type AssignmentFilter struct {
	TeacherID *uint
	ClassID   *uint
	Status    *models.AssignmentStatus
	Search    string
	Sort      string
	Page      int
	PageSize  int
}

// AssignmentRepository defines persistence operations for assignments and their questions.
type AssignmentRepository interface {
	ListWithFilter(ctx context.Context, filter AssignmentFilter) ([]models.Assignment, int64, error)
	ListVisible(ctx context.Context, classID *uint, reference time.Time) ([]models.Assignment, error)
	GetByID(ctx context.Context, id uint) (models.Assignment, error)
	GetWithQuestions(ctx context.Context, id uint) (models.Assignment, error)
	ListQuestions(ctx context.Context, assignmentID uint) ([]models.Question, error)
	GetQuestion(ctx context.Context, assignmentID, questionID uint) (models.Question, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	UpdateStatus(ctx context.Context, id uint, status models.AssignmentStatus) error
	UpdatePin(ctx context.Context, id uint, pin string) error
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) ListWithFilter(ctx context.Context, filter AssignmentFilter) ([]models.Assignment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Assignment{})

	if filter.TeacherID != nil {
		query = query.Where("teacher_id = ?", *filter.TeacherID)
	}
	if filter.ClassID != nil {
		query = query.Where("class_id = ?", *filter.ClassID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(strings.TrimSpace(filter.Search)) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(subject) LIKE ?", pattern, pattern)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order(normalizeAssignmentSort(filter.Sort))

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		offset := (page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var assignments []models.Assignment
	if err := query.Find(&assignments).Error; err != nil {
		return nil, 0, err
	}

	return assignments, total, nil
}

// ListVisible returns ACTIVE assignments already visible at reference for a
// class. Assignments without a class are visible to every class.
func (r *assignmentRepository) ListVisible(ctx context.Context, classID *uint, reference time.Time) ([]models.Assignment, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", models.AssignmentStatusActive).
		Where("visible_from IS NULL OR visible_from <= ?", reference)

	if classID != nil {
		query = query.Where("class_id IS NULL OR class_id = ?", *classID)
	} else {
		query = query.Where("class_id IS NULL")
	}

	var assignments []models.Assignment
	if err := query.Order("created_at DESC").Find(&assignments).Error; err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).First(&assignment, id).Error; err != nil {
		return models.Assignment{}, err
	}

	return assignment, nil
}

func (r *assignmentRepository) GetWithQuestions(ctx context.Context, id uint) (models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&assignment, id).Error; err != nil {
		return models.Assignment{}, err
	}

	return assignment, nil
}

func (r *assignmentRepository) ListQuestions(ctx context.Context, assignmentID uint) ([]models.Question, error) {
	var questions []models.Question
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("position ASC").
		Find(&questions).Error; err != nil {
		return nil, err
	}

	return questions, nil
}

func (r *assignmentRepository) GetQuestion(ctx context.Context, assignmentID, questionID uint) (models.Question, error) {
	var question models.Question
	if err := r.db.WithContext(ctx).
		Where("id = ? AND assignment_id = ?", questionID, assignmentID).
		First(&question).Error; err != nil {
		return models.Question{}, err
	}

	return question, nil
}

// Create persists the assignment together with its questions in one transaction.
func (r *assignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		questions := assignment.Questions
		if err := tx.Omit(clause.Associations).Create(assignment).Error; err != nil {
			return err
		}

		for i := range questions {
			questions[i].AssignmentID = assignment.ID
		}
		if len(questions) > 0 {
			if err := tx.Create(&questions).Error; err != nil {
				return err
			}
		}
		assignment.Questions = questions

		return nil
	})
}

func (r *assignmentRepository) UpdateStatus(ctx context.Context, id uint, status models.AssignmentStatus) error {
	result := r.db.WithContext(ctx).Model(&models.Assignment{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *assignmentRepository) UpdatePin(ctx context.Context, id uint, pin string) error {
	result := r.db.WithContext(ctx).Model(&models.Assignment{}).
		Where("id = ?", id).
		Update("access_pin", pin)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func normalizeAssignmentSort(sort string) string {
	switch strings.ToLower(strings.TrimSpace(sort)) {
	case "deadline", "deadline:asc", "deadline.asc":
		return "deadline ASC"
	case "-deadline", "deadline:desc", "deadline.desc":
		return "deadline DESC"
	case "title", "title:asc", "title.asc":
		return "title ASC"
	case "-title", "title:desc", "title.desc":
		return "title DESC"
	case "created_at", "created_at:asc", "created_at.asc":
		return "created_at ASC"
	default:
		return "created_at DESC"
	}
}
