package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-classroom-api/internal/models"
)

// ErrSubmissionFinalized is returned when a write targets an attempt that is already submitted.
var ErrSubmissionFinalized = errors.New("submission already finalized")

// SubmissionFilter allows narrowing submission queries.
type SubmissionFilter struct {
	AssignmentID *uint
	StudentID    *uint
	Submitted    *bool
}

// FinalizeFunc computes the finalized submission from the stored attempt and its answers.
type FinalizeFunc func(submission models.Submission, answers []models.Answer) (models.Submission, error)

// GradeFunc returns the graded submission and the answers whose points changed.
type GradeFunc func(submission models.Submission, answers []models.Answer) (models.Submission, []models.Answer, error)

// SubmissionRepository defines data operations for submissions and answers.
type SubmissionRepository interface {
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID uint) (models.Submission, error)
	CreateIfAbsent(ctx context.Context, submission *models.Submission) (bool, error)
	UpsertAnswer(ctx context.Context, answer *models.Answer) error
	ListAnswers(ctx context.Context, submissionID uint) ([]models.Answer, error)
	Finalize(ctx context.Context, id uint, apply FinalizeFunc) (models.Submission, error)
	ApplyGrade(ctx context.Context, id uint, apply GradeFunc) (models.Submission, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Preload("Assignment")
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.baseQuery(ctx)

	if filter.AssignmentID != nil {
		query = query.Where("assignment_id = ?", *filter.AssignmentID)
	}

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}

	if filter.Submitted != nil {
		if *filter.Submitted {
			query = query.Where("submitted_at IS NOT NULL")
		} else {
			query = query.Where("submitted_at IS NULL")
		}
	}

	var submissions []models.Submission
	if err := query.Order("created_at DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_id ASC")
		}).
		First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("student_id = ?", studentID).
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

// CreateIfAbsent inserts the submission unless one already exists for the
// (assignment, student) pair. The stored record is loaded into submission
// either way; the boolean reports whether this call created it.
func (r *submissionRepository) CreateIfAbsent(ctx context.Context, submission *models.Submission) (bool, error) {
	result := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "assignment_id"}, {Name: "student_id"}},
			DoNothing: true,
		}).
		Create(submission)
	if result.Error != nil {
		return false, result.Error
	}

	stored, err := r.GetByAssignmentAndStudent(ctx, submission.AssignmentID, submission.StudentID)
	if err != nil {
		return false, err
	}
	*submission = stored

	return result.RowsAffected > 0, nil
}

// UpsertAnswer writes the answer for (submission, question), overwriting any
// previous response. The submission row is touched first under the
// "not yet submitted" guard so the write serializes with Finalize.
func (r *submissionRepository) UpsertAnswer(ctx context.Context, answer *models.Answer) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		guard := tx.Model(&models.Submission{}).
			Where("id = ? AND submitted_at IS NULL", answer.SubmissionID).
			Update("updated_at", time.Now())
		if guard.Error != nil {
			return guard.Error
		}
		if guard.RowsAffected == 0 {
			return ErrSubmissionFinalized
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "submission_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"response", "is_correct", "points", "updated_at"}),
		}).Create(answer).Error; err != nil {
			return err
		}

		var stored models.Answer
		if err := tx.Where("submission_id = ? AND question_id = ?", answer.SubmissionID, answer.QuestionID).
			First(&stored).Error; err != nil {
			return err
		}
		*answer = stored
		return nil
	})
}

func (r *submissionRepository) ListAnswers(ctx context.Context, submissionID uint) ([]models.Answer, error) {
	var answers []models.Answer
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("question_id ASC").
		Find(&answers).Error; err != nil {
		return nil, err
	}

	return answers, nil
}

// Finalize runs apply against the current attempt and commits the result with
// a conditional update guarded by submitted_at IS NULL. The submission row is
// locked before the answers are read, so an answer write either lands first and
// is scored or waits and fails with ErrSubmissionFinalized. Exactly one of any
// number of concurrent callers succeeds.
func (r *submissionRepository) Finalize(ctx context.Context, id uint, apply FinalizeFunc) (models.Submission, error) {
	var finalized models.Submission

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Submission
		if err := lockSubmission(tx, id, &current).Error; err != nil {
			return err
		}
		if current.SubmittedAt != nil {
			return ErrSubmissionFinalized
		}

		var answers []models.Answer
		if err := tx.Where("submission_id = ?", id).Find(&answers).Error; err != nil {
			return err
		}

		updated, err := apply(current, answers)
		if err != nil {
			return err
		}

		result := tx.Model(&models.Submission{}).
			Where("id = ? AND submitted_at IS NULL", id).
			Updates(map[string]interface{}{
				"raw_score":    updated.RawScore,
				"final_grade":  updated.FinalGrade,
				"graded_at":    updated.GradedAt,
				"submitted_at": updated.SubmittedAt,
				"artifact_url": updated.ArtifactURL,
				"notes":        updated.Notes,
				"updated_at":   time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrSubmissionFinalized
		}

		updated.Answers = answers
		finalized = updated
		return nil
	})
	if err != nil {
		return models.Submission{}, err
	}

	return finalized, nil
}

// ApplyGrade writes teacher grading for a submission and its answers in one
// transaction. Concurrent graders serialize on the submission row lock.
func (r *submissionRepository) ApplyGrade(ctx context.Context, id uint, apply GradeFunc) (models.Submission, error) {
	var graded models.Submission

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Submission
		if err := lockSubmission(tx, id, &current).Error; err != nil {
			return err
		}

		var answers []models.Answer
		if err := tx.Where("submission_id = ?", id).Order("question_id ASC").Find(&answers).Error; err != nil {
			return err
		}

		updated, changed, err := apply(current, answers)
		if err != nil {
			return err
		}

		for _, answer := range changed {
			result := tx.Model(&models.Answer{}).
				Where("id = ? AND submission_id = ?", answer.ID, id).
				Updates(map[string]interface{}{
					"points":     answer.Points,
					"is_correct": answer.IsCorrect,
					"graded_at":  answer.GradedAt,
					"graded_by":  answer.GradedBy,
					"updated_at": time.Now(),
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
		}

		if err := tx.Model(&models.Submission{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"raw_score":   updated.RawScore,
				"final_grade": updated.FinalGrade,
				"graded_at":   updated.GradedAt,
				"graded_by":   updated.GradedBy,
				"notes":       updated.Notes,
				"updated_at":  time.Now(),
			}).Error; err != nil {
			return err
		}

		if err := tx.Where("submission_id = ?", id).Order("question_id ASC").Find(&updated.Answers).Error; err != nil {
			return err
		}

		graded = updated
		return nil
	})
	if err != nil {
		return models.Submission{}, err
	}

	return graded, nil
}

// lockSubmission loads the submission with a row lock held until the
// transaction ends. SQLite ignores the locking clause.
func lockSubmission(tx *gorm.DB, id uint, dest *models.Submission) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).First(dest, id)
}
