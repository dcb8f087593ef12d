package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-classroom-api/internal/models"
)

// GradeRecordFilter narrows grade book queries.
type GradeRecordFilter struct {
	StudentID *uint
	TeacherID *uint
	Subject   string
}

// GradeRecordRepository persists permanent grade book entries.
type GradeRecordRepository interface {
	Create(ctx context.Context, record *models.GradeRecord) error
	List(ctx context.Context, filter GradeRecordFilter) ([]models.GradeRecord, error)
}

type gradeRecordRepository struct {
	db *gorm.DB
}

// NewGradeRecordRepository constructs the grade book repository.
func NewGradeRecordRepository(db *gorm.DB) GradeRecordRepository {
	return &gradeRecordRepository{db: db}
}

func (r *gradeRecordRepository) Create(ctx context.Context, record *models.GradeRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *gradeRecordRepository) List(ctx context.Context, filter GradeRecordFilter) ([]models.GradeRecord, error) {
	query := r.db.WithContext(ctx).Model(&models.GradeRecord{})

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.TeacherID != nil {
		query = query.Where("teacher_id = ?", *filter.TeacherID)
	}
	if filter.Subject != "" {
		query = query.Where("subject = ?", filter.Subject)
	}

	var records []models.GradeRecord
	if err := query.Order("date DESC").Find(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}
