package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-classroom-api/internal/dto"
	"github.com/noah-isme/gema-classroom-api/internal/models"
	"github.com/noah-isme/gema-classroom-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Student{},
		&models.Assignment{},
		&models.Question{},
		&models.Submission{},
		&models.Answer{},
		&models.GradeRecord{},
		&models.ActivityLog{},
		&models.Notification{},
	))
	return db
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func ptrString(v string) *string {
	return &v
}

func ptrInt(v int) *int {
	return &v
}

func ptrUint(v uint) *uint {
	return &v
}

type recordingRelay struct {
	mu   sync.Mutex
	sent []dto.NotificationCreateRequest
	err  error
}

func (r *recordingRelay) Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, payload)
	if r.err != nil {
		return dto.NotificationResponse{}, r.err
	}
	return dto.NotificationResponse{UserID: payload.UserID, Type: payload.Type}, nil
}

func (r *recordingRelay) recipients() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sent))
	for _, item := range r.sent {
		out = append(out, item.UserID)
	}
	return out
}

type recordingGradeBook struct {
	mu      sync.Mutex
	entries []models.Submission
	err     error
}

func (r *recordingGradeBook) RecordAssignmentGrade(ctx context.Context, submission models.Submission, assignment models.Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, submission)
	return r.err
}

type recordingActivity struct {
	mu      sync.Mutex
	entries []ActivityEntry
	err     error
}

func (r *recordingActivity) Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	if r.err != nil {
		return dto.ActivityResponse{}, r.err
	}
	return dto.ActivityResponse{Action: entry.Action}, nil
}

type staticGuardians struct {
	guardians map[uint]uint
	err       error
}

func (g staticGuardians) GuardianUserID(ctx context.Context, studentID uint) (*uint, error) {
	if g.err != nil {
		return nil, g.err
	}
	if id, ok := g.guardians[studentID]; ok {
		return &id, nil
	}
	return nil, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return p.err
}

var errUnavailable = errors.New("downstream unavailable")

// classroomFixture wires real repositories over sqlite with recording side effects.
type classroomFixture struct {
	db          *gorm.DB
	assignments repository.AssignmentRepository
	submissions SubmissionService
	relay       *recordingRelay
	gradeBook   *recordingGradeBook
	activity    *recordingActivity
	publisher   *recordingPublisher
	now         time.Time
}

func newClassroomFixture(t *testing.T) *classroomFixture {
	t.Helper()
	db := setupServiceDB(t)

	f := &classroomFixture{
		db:          db,
		assignments: repository.NewAssignmentRepository(db),
		relay:       &recordingRelay{},
		gradeBook:   &recordingGradeBook{},
		activity:    &recordingActivity{},
		publisher:   &recordingPublisher{},
		now:         time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}

	events := NewSubmissionEventDispatcher(SubmissionEventDeps{
		Notifications: f.relay,
		GradeBook:     f.gradeBook,
		Activity:      f.activity,
		Guardians:     staticGuardians{guardians: map[uint]uint{21: 900}},
		Publisher:     f.publisher,
		Channel:       "gema:classroom",
	}, testLogger())

	svc := NewSubmissionService(repository.NewSubmissionRepository(db), f.assignments, repository.NewStudentRepository(db), testValidator(), events, testLogger()).(*submissionService)
	svc.now = func() time.Time { return f.now }
	f.submissions = svc

	return f
}

func (f *classroomFixture) createAssignment(t *testing.T, assignment models.Assignment) models.Assignment {
	t.Helper()
	require.NoError(t, f.assignments.Create(context.Background(), &assignment))
	return assignment
}

func (f *classroomFixture) homework(t *testing.T, deadline time.Time, questions ...models.Question) models.Assignment {
	t.Helper()
	return f.createAssignment(t, models.Assignment{
		Title:     "Homework",
		Subject:   "Science",
		TeacherID: 5,
		Mode:      models.AssignmentModeHomework,
		Status:    models.AssignmentStatusActive,
		Deadline:  &deadline,
		Questions: questions,
	})
}

func multipleChoice(position int, key string) models.Question {
	return models.Question{
		Prompt:        fmt.Sprintf("Question %d", position),
		AnswerType:    models.AnswerTypeMultipleChoice,
		Choices:       models.EncodeChoices([]string{"A", "B", "C"}),
		CorrectAnswer: key,
		Points:        10,
		Position:      position,
	}
}

func essay(position int) models.Question {
	return models.Question{
		Prompt:     fmt.Sprintf("Essay %d", position),
		AnswerType: models.AnswerTypeEssay,
		Points:     10,
		Position:   position,
	}
}
