package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-classroom-api/internal/dto"
	"github.com/noah-isme/gema-classroom-api/internal/models"
	"github.com/noah-isme/gema-classroom-api/internal/repository"
)

type assignmentFixture struct {
	db       *gorm.DB
	service  AssignmentService
	activity *recordingActivity
	redis    *miniredis.Miniredis
	now      time.Time
}

func newAssignmentFixture(t *testing.T) *assignmentFixture {
	t.Helper()
	db := setupServiceDB(t)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &assignmentFixture{
		db:       db,
		activity: &recordingActivity{},
		redis:    mr,
		now:      time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}

	pins := PinGeneratorFunc(func() (string, error) { return "482913", nil })
	svc := NewAssignmentService(
		repository.NewAssignmentRepository(db),
		repository.NewStudentRepository(db),
		testValidator(),
		pins,
		f.activity,
		client,
		time.Minute,
		testLogger(),
	).(*assignmentService)
	svc.now = func() time.Time { return f.now }
	f.service = svc

	return f
}

func quizPayload() dto.AssignmentCreateRequest {
	return dto.AssignmentCreateRequest{
		Title:           "Fractions quiz",
		Subject:         "Math",
		Mode:            string(models.AssignmentModeLive),
		DurationMinutes: ptrInt(20),
		Questions: []dto.QuestionCreateRequest{
			{Prompt: "1/2 + 1/4?", AnswerType: string(models.AnswerTypeMultipleChoice), Choices: []string{"3/4", "2/6"}, CorrectAnswer: "3/4"},
			{Prompt: "Explain common denominators.", AnswerType: string(models.AnswerTypeEssay), Points: ptrInt(20)},
		},
	}
}

func TestAssignmentCreateLiveIssuesPinAndStartsAsDraft(t *testing.T) {
	f := newAssignmentFixture(t)

	created, err := f.service.Create(context.Background(), teacherActor, quizPayload())
	require.NoError(t, err)
	require.Equal(t, "482913", created.AccessPin)
	require.Equal(t, string(models.AssignmentStatusDraft), created.Status)
	require.Equal(t, testTeacherID, created.TeacherID)
	require.Equal(t, 30, created.MaxScore)
	require.Len(t, created.Questions, 2)
	require.Equal(t, 1, created.Questions[0].Position)
	require.Equal(t, 10, created.Questions[0].Points)

	require.Len(t, f.activity.entries, 1)
	require.Equal(t, "assignment.created", f.activity.entries[0].Action)
}

func TestAssignmentCreateRejectsInvalidDefinitions(t *testing.T) {
	f := newAssignmentFixture(t)
	deadline := "2026-03-09T17:00:00Z"

	cases := map[string]func(p *dto.AssignmentCreateRequest){
		"live without duration": func(p *dto.AssignmentCreateRequest) {
			p.DurationMinutes = nil
		},
		"live with deadline": func(p *dto.AssignmentCreateRequest) {
			p.Deadline = &deadline
		},
		"homework without deadline": func(p *dto.AssignmentCreateRequest) {
			p.Mode = string(models.AssignmentModeHomework)
			p.DurationMinutes = nil
		},
		"homework with duration": func(p *dto.AssignmentCreateRequest) {
			p.Mode = string(models.AssignmentModeHomework)
			p.Deadline = &deadline
		},
		"multiple choice without key": func(p *dto.AssignmentCreateRequest) {
			p.Questions[0].CorrectAnswer = ""
		},
		"multiple choice with one choice": func(p *dto.AssignmentCreateRequest) {
			p.Questions[0].Choices = []string{"3/4"}
		},
		"duplicate positions": func(p *dto.AssignmentCreateRequest) {
			p.Questions[0].Position = 2
			p.Questions[1].Position = 2
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			payload := quizPayload()
			mutate(&payload)
			_, err := f.service.Create(context.Background(), teacherActor, payload)
			require.ErrorIs(t, err, ErrInvalidAssignment)
		})
	}

	_, err := f.service.Create(context.Background(), ActivityActor{Role: RoleTeacher}, quizPayload())
	require.ErrorIs(t, err, ErrMissingTeacher)

	var count int64
	require.NoError(t, f.db.Model(&models.Assignment{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestAssignmentOwnershipIsEnforced(t *testing.T) {
	f := newAssignmentFixture(t)
	created, err := f.service.Create(context.Background(), teacherActor, quizPayload())
	require.NoError(t, err)

	other := ActivityActor{ID: 6, Role: RoleTeacher}
	_, err = f.service.Get(context.Background(), other, created.ID)
	require.ErrorIs(t, err, ErrNotOwner)

	_, err = f.service.UpdateStatus(context.Background(), other, created.ID, dto.AssignmentStatusUpdateRequest{Status: "ACTIVE"})
	require.ErrorIs(t, err, ErrNotOwner)

	_, err = f.service.Get(context.Background(), ActivityActor{ID: 1, Role: RoleAdmin}, created.ID)
	require.NoError(t, err)

	list, err := f.service.List(context.Background(), other, dto.AssignmentFilter{})
	require.NoError(t, err)
	require.Empty(t, list.Items)

	list, err = f.service.List(context.Background(), teacherActor, dto.AssignmentFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.EqualValues(t, 1, list.Pagination.TotalItems)
	require.Equal(t, 1, list.Pagination.TotalPages)
}

func TestAssignmentRegeneratePin(t *testing.T) {
	f := newAssignmentFixture(t)
	created, err := f.service.Create(context.Background(), teacherActor, quizPayload())
	require.NoError(t, err)

	svc := f.service.(*assignmentService)
	svc.pins = PinGeneratorFunc(func() (string, error) { return "000111", nil })

	rotated, err := f.service.RegeneratePin(context.Background(), teacherActor, created.ID)
	require.NoError(t, err)
	require.Equal(t, "000111", rotated.AccessPin)

	var stored models.Assignment
	require.NoError(t, f.db.First(&stored, created.ID).Error)
	require.Equal(t, "000111", stored.AccessPin)
	require.Equal(t, "assignment.pin_rotated", f.activity.entries[len(f.activity.entries)-1].Action)
}

func TestStudentViewHidesKeyAndDrafts(t *testing.T) {
	f := newAssignmentFixture(t)
	created, err := f.service.Create(context.Background(), teacherActor, quizPayload())
	require.NoError(t, err)

	_, err = f.service.GetForStudent(context.Background(), created.ID, testStudentID)
	require.ErrorIs(t, err, ErrAssignmentNotFound, "drafts are invisible to students")

	_, err = f.service.UpdateStatus(context.Background(), teacherActor, created.ID, dto.AssignmentStatusUpdateRequest{Status: "ACTIVE"})
	require.NoError(t, err)

	view, err := f.service.GetForStudent(context.Background(), created.ID, testStudentID)
	require.NoError(t, err)
	require.True(t, view.RequiresPin)
	require.Len(t, view.Questions, 2)
	for _, question := range view.Questions {
		require.Empty(t, question.CorrectAnswer)
	}
}

func TestStudentViewIsCachedAndInvalidatedOnStatusChange(t *testing.T) {
	f := newAssignmentFixture(t)
	payload := quizPayload()
	payload.Status = ptrString("ACTIVE")
	created, err := f.service.Create(context.Background(), teacherActor, payload)
	require.NoError(t, err)

	_, err = f.service.GetForStudent(context.Background(), created.ID, testStudentID)
	require.NoError(t, err)
	require.True(t, f.redis.Exists(studentViewKey(created.ID)))

	// A direct write bypasses the service; the cached copy is served until invalidated.
	require.NoError(t, f.db.Model(&models.Assignment{}).Where("id = ?", created.ID).Update("title", "Renamed").Error)
	cached, err := f.service.GetForStudent(context.Background(), created.ID, testStudentID)
	require.NoError(t, err)
	require.Equal(t, "Fractions quiz", cached.Title)

	_, err = f.service.UpdateStatus(context.Background(), teacherActor, created.ID, dto.AssignmentStatusUpdateRequest{Status: "CLOSED"})
	require.NoError(t, err)
	require.False(t, f.redis.Exists(studentViewKey(created.ID)))

	fresh, err := f.service.GetForStudent(context.Background(), created.ID, testStudentID)
	require.NoError(t, err)
	require.Equal(t, "Renamed", fresh.Title)
	require.Equal(t, string(models.AssignmentStatusClosed), fresh.Status)
}

func TestListForStudentFiltersByClassAndVisibility(t *testing.T) {
	f := newAssignmentFixture(t)
	classA, classB := uint(1), uint(2)
	require.NoError(t, f.db.Create(&models.Student{ID: testStudentID, Name: "Rani", Email: "rani@example.com", ClassID: &classA}).Error)

	deadline := "2026-03-09T17:00:00Z"
	later := "2026-03-05T07:00:00Z"
	homework := func(title string, classID *uint, visibleFrom *string) {
		_, err := f.service.Create(context.Background(), teacherActor, dto.AssignmentCreateRequest{
			Title:       title,
			Subject:     "Biology",
			Mode:        string(models.AssignmentModeHomework),
			Deadline:    &deadline,
			VisibleFrom: visibleFrom,
			ClassID:     classID,
		})
		require.NoError(t, err)
	}
	homework("Everyone", nil, nil)
	homework("Class A", &classA, nil)
	homework("Class B", &classB, nil)
	homework("Scheduled", &classA, &later)

	items, err := f.service.ListForStudent(context.Background(), testStudentID)
	require.NoError(t, err)
	titles := make([]string, 0, len(items))
	for _, item := range items {
		titles = append(titles, item.Title)
	}
	require.ElementsMatch(t, []string{"Everyone", "Class A"}, titles)

	items, err = f.service.ListForStudent(context.Background(), 404)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Everyone", items[0].Title)
}

func TestStudentViewScopedToStudentClass(t *testing.T) {
	f := newAssignmentFixture(t)
	classA, classB := uint(1), uint(2)
	require.NoError(t, f.db.Create(&models.Student{ID: testStudentID, Name: "Rani", Email: "rani@example.com", ClassID: &classA}).Error)
	require.NoError(t, f.db.Create(&models.Student{ID: 22, Name: "Bayu", Email: "bayu@example.com", ClassID: &classB}).Error)

	payload := quizPayload()
	payload.Status = ptrString("ACTIVE")
	payload.ClassID = &classB
	created, err := f.service.Create(context.Background(), teacherActor, payload)
	require.NoError(t, err)

	view, err := f.service.GetForStudent(context.Background(), created.ID, 22)
	require.NoError(t, err)
	require.Equal(t, classB, *view.ClassID)
	require.True(t, f.redis.Exists(studentViewKey(created.ID)))

	// The cached view is shared, the class check still applies.
	_, err = f.service.GetForStudent(context.Background(), created.ID, testStudentID)
	require.ErrorIs(t, err, ErrAssignmentNotFound)

	_, err = f.service.GetForStudent(context.Background(), created.ID, 404)
	require.ErrorIs(t, err, ErrAssignmentNotFound)
}
