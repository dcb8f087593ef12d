package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-classroom-api/internal/dto"
	"github.com/noah-isme/gema-classroom-api/internal/handler"
	"github.com/noah-isme/gema-classroom-api/internal/service"
)

type stubSubmissionService struct {
	service.SubmissionService
	response dto.SubmissionResponse
}

func (s stubSubmissionService) Finalize(context.Context, uint, uint, dto.FinalizeRequest) (dto.SubmissionResponse, error) {
	return s.response, nil
}

func TestSubmissionFinalizeContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("testdata", "submission.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)

	now := time.Now().UTC()
	grade := 100
	correct := true
	deadline := now.Add(24 * time.Hour)
	submission := dto.SubmissionResponse{
		ID:           44,
		AssignmentID: 7,
		StudentID:    21,
		State:        "graded",
		MaxScore:     20,
		RawScore:     20,
		FinalGrade:   &grade,
		StartedAt:    now.Add(-time.Hour),
		SubmittedAt:  &now,
		GradedAt:     &now,
		Answers: []dto.AnswerResponse{
			{ID: 1, QuestionID: 3, Response: "A", IsCorrect: &correct, Points: 10},
			{ID: 2, QuestionID: 4, Response: "b", IsCorrect: &correct, Points: 10},
		},
		Assignment: &dto.AssignmentLite{ID: 7, Title: "Cells", Subject: "Science", Mode: "HOMEWORK", Deadline: &deadline},
	}

	h := handler.NewSubmissionHandler(stubSubmissionService{response: submission}, zerolog.Nop())

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(21))
		return c.Next()
	})
	h.Register(app.Group("/api/v2/student/submissions"), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v2/student/submissions/44/submit", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}
