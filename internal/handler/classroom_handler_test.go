package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-classroom-api/internal/config"
	"github.com/noah-isme/gema-classroom-api/internal/handler"
	"github.com/noah-isme/gema-classroom-api/internal/models"
	"github.com/noah-isme/gema-classroom-api/internal/repository"
	"github.com/noah-isme/gema-classroom-api/internal/router"
	"github.com/noah-isme/gema-classroom-api/internal/service"
)

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Details map[string]string `json:"details"`
	Error   *struct {
		Code   string `json:"code"`
		Reason string `json:"reason"`
	} `json:"error"`
}

type actor struct {
	id   uint
	role string
}

var (
	teacher      = actor{id: 5, role: "teacher"}
	otherTeacher = actor{id: 6, role: "teacher"}
	student      = actor{id: 21, role: "student"}
	admin        = actor{id: 1, role: "admin"}
)

func setupClassroomApp(t *testing.T) *fiber.App {
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
	))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	assignmentRepo := repository.NewAssignmentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	activityService := service.NewActivityService(repository.NewActivityLogRepository(db), logger)
	gradeBookService := service.NewGradeBookService(repository.NewGradeRecordRepository(db), logger)

	events := service.NewSubmissionEventDispatcher(service.SubmissionEventDeps{
		GradeBook: gradeBookService,
		Activity:  activityService,
		Guardians: studentRepo,
	}, logger)

	assignmentService := service.NewAssignmentService(assignmentRepo, studentRepo, validate, nil, activityService, nil, 0, logger)
	submissionRepo := repository.NewSubmissionRepository(db)
	submissionService := service.NewSubmissionService(submissionRepo, assignmentRepo, studentRepo, validate, events, logger)
	reportService := service.NewAssignmentReportService(assignmentRepo, submissionRepo, nil, 0, logger)
	dashboardService := service.NewStudentDashboardService(assignmentRepo, submissionRepo, studentRepo, nil, 0, logger)
	studentService := service.NewStudentService(studentRepo, validate, activityService, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test"}, router.Dependencies{
		AssignmentHandler:        handler.NewAssignmentHandler(assignmentService, logger),
		StudentAssignmentHandler: handler.NewStudentAssignmentHandler(assignmentService, submissionService, logger),
		SubmissionHandler:        handler.NewSubmissionHandler(submissionService, logger),
		GradingHandler:           handler.NewGradingHandler(submissionService, logger),
		ReportHandler:            handler.NewAssignmentReportHandler(reportService, logger),
		GradeBookHandler:         handler.NewGradeBookHandler(gradeBookService, logger),
		DashboardHandler:         handler.NewStudentDashboardHandler(dashboardService, logger),
		StudentHandler:           handler.NewStudentHandler(studentService, logger),
		ActivityHandler:          handler.NewActivityHandler(activityService, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			if id, err := strconv.ParseUint(c.Get("X-Test-User"), 10, 64); err == nil {
				c.Locals("user_id", uint(id))
			}
			c.Locals("user_role", c.Get("X-Test-Role"))
			return c.Next()
		},
	})

	return app
}

func call(t *testing.T, app *fiber.App, as actor, method, path string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Test-User", strconv.FormatUint(uint64(as.id), 10))
	req.Header.Set("X-Test-Role", as.role)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func decode(t *testing.T, raw json.RawMessage, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, target))
}

type assignmentBody struct {
	ID        uint   `json:"id"`
	Status    string `json:"status"`
	AccessPin string `json:"access_pin"`
	Questions []struct {
		ID uint `json:"id"`
	} `json:"questions"`
}

type submissionBody struct {
	ID         uint   `json:"id"`
	State      string `json:"state"`
	RawScore   int    `json:"raw_score"`
	FinalGrade *int   `json:"final_grade"`
	Answers    []struct {
		ID         uint `json:"id"`
		QuestionID uint `json:"question_id"`
	} `json:"answers"`
}

func createHomework(t *testing.T, app *fiber.App, questions ...map[string]interface{}) assignmentBody {
	t.Helper()
	status, res := call(t, app, teacher, http.MethodPost, "/api/v2/classroom/assignments", map[string]interface{}{
		"title":     "Cell biology",
		"subject":   "Science",
		"mode":      "HOMEWORK",
		"deadline":  time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
		"questions": questions,
	})
	require.Equal(t, http.StatusCreated, status, res.Message)

	var created assignmentBody
	decode(t, res.Data, &created)
	return created
}

func mcQuestion(key string) map[string]interface{} {
	return map[string]interface{}{
		"prompt":         "Pick one",
		"answer_type":    "MULTIPLE_CHOICE",
		"choices":        []string{"A", "B", "C"},
		"correct_answer": key,
	}
}

func essayQuestion() map[string]interface{} {
	return map[string]interface{}{
		"prompt":      "Explain osmosis",
		"answer_type": "ESSAY",
	}
}

func TestHomeworkAutogradedFlow(t *testing.T) {
	app := setupClassroomApp(t)
	assignment := createHomework(t, app, mcQuestion("A"), mcQuestion("B"))
	require.Equal(t, "ACTIVE", assignment.Status)

	base := fmt.Sprintf("/api/v2/student/assignments/%d", assignment.ID)
	status, res := call(t, app, student, http.MethodPost, base+"/start", nil)
	require.Equal(t, http.StatusCreated, status)
	var attempt submissionBody
	decode(t, res.Data, &attempt)
	require.Equal(t, "in_progress", attempt.State)

	status, _ = call(t, app, student, http.MethodPost, base+"/start", nil)
	require.Equal(t, http.StatusOK, status, "second start resumes the attempt")

	submissionPath := fmt.Sprintf("/api/v2/student/submissions/%d", attempt.ID)
	for i, response := range []string{"a", "B"} {
		status, res = call(t, app, student, http.MethodPut, submissionPath+"/answers", map[string]interface{}{
			"question_id": assignment.Questions[i].ID,
			"response":    response,
		})
		require.Equal(t, http.StatusOK, status, res.Message)
	}

	status, res = call(t, app, student, http.MethodPost, submissionPath+"/submit", nil)
	require.Equal(t, http.StatusOK, status, res.Message)
	var submitted submissionBody
	decode(t, res.Data, &submitted)
	require.Equal(t, 20, submitted.RawScore)
	require.NotNil(t, submitted.FinalGrade)
	require.Equal(t, 100, *submitted.FinalGrade)

	status, res = call(t, app, student, http.MethodPost, submissionPath+"/submit", nil)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "ALREADY_SUBMITTED", res.Error.Code)

	status, res = call(t, app, student, http.MethodPut, submissionPath+"/answers", map[string]interface{}{
		"question_id": assignment.Questions[0].ID,
		"response":    "C",
	})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "ALREADY_SUBMITTED", res.Error.Code)

	status, res = call(t, app, student, http.MethodGet, "/api/v2/student/grades", nil)
	require.Equal(t, http.StatusOK, status)
	var grades []struct {
		Score int    `json:"score"`
		Kind  string `json:"kind"`
	}
	decode(t, res.Data, &grades)
	require.Len(t, grades, 1)
	require.Equal(t, 100, grades[0].Score)
	require.Equal(t, "tugas", grades[0].Kind)
}

func TestEssayGradingFlow(t *testing.T) {
	app := setupClassroomApp(t)
	assignment := createHomework(t, app, mcQuestion("A"), mcQuestion("B"), essayQuestion())

	status, res := call(t, app, student, http.MethodPost, fmt.Sprintf("/api/v2/student/assignments/%d/start", assignment.ID), nil)
	require.Equal(t, http.StatusCreated, status)
	var attempt submissionBody
	decode(t, res.Data, &attempt)

	submissionPath := fmt.Sprintf("/api/v2/student/submissions/%d", attempt.ID)
	for i, response := range []string{"A", "B", "Water moves across a membrane."} {
		status, _ = call(t, app, student, http.MethodPut, submissionPath+"/answers", map[string]interface{}{
			"question_id": assignment.Questions[i].ID,
			"response":    response,
		})
		require.Equal(t, http.StatusOK, status)
	}

	gradePath := fmt.Sprintf("/api/v2/classroom/submissions/%d/grade", attempt.ID)
	status, res = call(t, app, teacher, http.MethodPost, gradePath, map[string]interface{}{"overall_score": 90})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "NOT_SUBMITTED", res.Error.Code)

	status, res = call(t, app, student, http.MethodPost, submissionPath+"/submit", nil)
	require.Equal(t, http.StatusOK, status)
	var submitted submissionBody
	decode(t, res.Data, &submitted)
	require.Equal(t, "submitted", submitted.State)
	require.Nil(t, submitted.FinalGrade)

	var essayAnswerID uint
	for _, answer := range submitted.Answers {
		if answer.QuestionID == assignment.Questions[2].ID {
			essayAnswerID = answer.ID
		}
	}
	require.NotZero(t, essayAnswerID)

	status, res = call(t, app, otherTeacher, http.MethodPost, gradePath, map[string]interface{}{
		"answers": []map[string]interface{}{{"answer_id": essayAnswerID, "points": 5}},
	})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "PERMISSION_DENIED", res.Error.Code)

	status, res = call(t, app, teacher, http.MethodPost, gradePath, map[string]interface{}{
		"answers": []map[string]interface{}{{"answer_id": essayAnswerID, "points": 50}},
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "INVALID_INPUT", res.Error.Code)

	status, res = call(t, app, teacher, http.MethodPost, gradePath, map[string]interface{}{
		"answers": []map[string]interface{}{{"answer_id": essayAnswerID, "points": 5}},
	})
	require.Equal(t, http.StatusOK, status, res.Message)
	var graded submissionBody
	decode(t, res.Data, &graded)
	require.Equal(t, "graded", graded.State)
	require.Equal(t, 83, *graded.FinalGrade)

	status, res = call(t, app, teacher, http.MethodGet, fmt.Sprintf("/api/v2/classroom/assignments/%d/submissions", assignment.ID), nil)
	require.Equal(t, http.StatusOK, status)
	var listed []submissionBody
	decode(t, res.Data, &listed)
	require.Len(t, listed, 1)

	status, res = call(t, app, teacher, http.MethodGet, fmt.Sprintf("/api/v2/classroom/assignments/%d/report", assignment.ID), nil)
	require.Equal(t, http.StatusOK, status)
	var report struct {
		Submitted    int64    `json:"submitted"`
		Graded       int64    `json:"graded"`
		AverageGrade *float64 `json:"average_grade"`
	}
	decode(t, res.Data, &report)
	require.EqualValues(t, 1, report.Graded)
	require.InDelta(t, 83, *report.AverageGrade, 0.001)

	status, res = call(t, app, admin, http.MethodGet, "/api/v2/admin/activities?entity_type=submission", nil)
	require.Equal(t, http.StatusOK, status, res.Message)
}

func TestLiveAccessDenials(t *testing.T) {
	app := setupClassroomApp(t)

	status, res := call(t, app, teacher, http.MethodPost, "/api/v2/classroom/assignments", map[string]interface{}{
		"title":            "Pop quiz",
		"subject":          "History",
		"mode":             "LIVE",
		"duration_minutes": 15,
		"questions":        []map[string]interface{}{mcQuestion("C")},
	})
	require.Equal(t, http.StatusCreated, status, res.Message)
	var quiz assignmentBody
	decode(t, res.Data, &quiz)
	require.Equal(t, "DRAFT", quiz.Status)
	require.Len(t, quiz.AccessPin, 6)

	startPath := fmt.Sprintf("/api/v2/student/assignments/%d/start", quiz.ID)

	status, res = call(t, app, student, http.MethodPost, startPath, map[string]string{"pin": quiz.AccessPin})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "ACCESS_DENIED", res.Error.Code)
	require.Equal(t, "NOT_ACTIVE", res.Error.Reason)

	status, _ = call(t, app, teacher, http.MethodPatch, fmt.Sprintf("/api/v2/classroom/assignments/%d/status", quiz.ID), map[string]string{"status": "ACTIVE"})
	require.Equal(t, http.StatusOK, status)

	status, res = call(t, app, student, http.MethodPost, startPath, nil)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "PIN_REQUIRED", res.Error.Reason)

	wrong := "000000"
	if quiz.AccessPin == wrong {
		wrong = "111111"
	}
	status, res = call(t, app, student, http.MethodPost, startPath, map[string]string{"pin": wrong})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "INVALID_PIN", res.Error.Reason)

	status, _ = call(t, app, student, http.MethodPost, startPath, map[string]string{"pin": quiz.AccessPin})
	require.Equal(t, http.StatusCreated, status)

	status, res = call(t, app, student, http.MethodGet, fmt.Sprintf("/api/v2/student/assignments/%d", quiz.ID), nil)
	require.Equal(t, http.StatusOK, status)
	require.NotContains(t, string(res.Data), "correct_answer")
	require.NotContains(t, string(res.Data), "access_pin")
}

func TestRoleAndValidationErrors(t *testing.T) {
	app := setupClassroomApp(t)

	status, _ := call(t, app, student, http.MethodPost, "/api/v2/classroom/assignments", map[string]interface{}{})
	require.Equal(t, http.StatusForbidden, status)

	status, _ = call(t, app, teacher, http.MethodPost, "/api/v2/student/assignments/1/start", nil)
	require.Equal(t, http.StatusForbidden, status)

	status, res := call(t, app, teacher, http.MethodPost, "/api/v2/classroom/assignments", map[string]interface{}{
		"title": "x",
		"mode":  "QUIZ",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "min", res.Details["Title"])
	require.Equal(t, "oneof", res.Details["Mode"])

	status, res = call(t, app, teacher, http.MethodPost, "/api/v2/classroom/assignments", map[string]interface{}{
		"title":   "No deadline",
		"subject": "Math",
		"mode":    "HOMEWORK",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "INVALID_INPUT", res.Error.Code)

	status, res = call(t, app, student, http.MethodPost, "/api/v2/student/assignments/999/start", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "NOT_FOUND", res.Error.Code)

	status, _ = call(t, app, student, http.MethodPost, "/api/v2/student/assignments/abc/start", nil)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestRosterAndDashboard(t *testing.T) {
	app := setupClassroomApp(t)

	status, res := call(t, app, admin, http.MethodPost, "/api/v2/admin/students", map[string]interface{}{
		"name":  "Rani Putri",
		"email": "rani@example.com",
	})
	require.Equal(t, http.StatusCreated, status, res.Message)
	var enrolled struct {
		ID             uint  `json:"id"`
		GuardianUserID *uint `json:"guardian_user_id"`
	}
	decode(t, res.Data, &enrolled)
	require.Nil(t, enrolled.GuardianUserID)

	status, res = call(t, app, admin, http.MethodPost, "/api/v2/admin/students", map[string]interface{}{
		"name":  "Copy",
		"email": "RANI@example.com",
	})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "CONFLICT", res.Error.Code)

	status, res = call(t, app, admin, http.MethodPost, "/api/v2/admin/students", map[string]interface{}{
		"name":  "Bad",
		"email": "nope",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "email", res.Details["Email"])

	status, res = call(t, app, admin, http.MethodPatch, fmt.Sprintf("/api/v2/admin/students/%d", enrolled.ID), map[string]interface{}{
		"guardian_user_id": 900,
	})
	require.Equal(t, http.StatusOK, status, res.Message)
	decode(t, res.Data, &enrolled)
	require.Equal(t, uint(900), *enrolled.GuardianUserID)

	status, res = call(t, app, admin, http.MethodGet, "/api/v2/admin/students?search=rani", nil)
	require.Equal(t, http.StatusOK, status)
	var roster struct {
		Items []struct {
			Email string `json:"email"`
		} `json:"items"`
	}
	decode(t, res.Data, &roster)
	require.Len(t, roster.Items, 1)

	status, res = call(t, app, admin, http.MethodGet, "/api/v2/admin/students/999", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "NOT_FOUND", res.Error.Code)

	status, _ = call(t, app, teacher, http.MethodGet, "/api/v2/admin/students", nil)
	require.Equal(t, http.StatusForbidden, status)

	createHomework(t, app, mcQuestion("A"))
	status, res = call(t, app, student, http.MethodGet, "/api/v2/student/dashboard", nil)
	require.Equal(t, http.StatusOK, status, res.Message)
	var dashboard struct {
		Summary struct {
			TotalAssignments int `json:"total_assignments"`
			NotStarted       int `json:"not_started"`
		} `json:"summary"`
		Pending []struct {
			State string `json:"state"`
		} `json:"pending_assignments"`
	}
	decode(t, res.Data, &dashboard)
	require.Equal(t, 1, dashboard.Summary.TotalAssignments)
	require.Equal(t, 1, dashboard.Summary.NotStarted)
	require.Len(t, dashboard.Pending, 1)
	require.Equal(t, "not_started", dashboard.Pending[0].State)
}
