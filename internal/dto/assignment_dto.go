package dto

import (
	"time"

	"github.com/noah-isme/gema-classroom-api/internal/models"
)

const isoLayout = time.RFC3339

// AssignmentCreateRequest describes the payload for creating an assignment with its questions.
type AssignmentCreateRequest struct {
	Title           string                  `json:"title" validate:"required,min=3,max=255"`
	Subject         string                  `json:"subject" validate:"required,min=2,max=128"`
	Description     string                  `json:"description" validate:"omitempty,max=5000"`
	ClassID         *uint                   `json:"class_id" validate:"omitempty,gt=0"`
	Mode            string                  `json:"mode" validate:"required,oneof=LIVE HOMEWORK"`
	Status          *string                 `json:"status" validate:"omitempty,oneof=DRAFT ACTIVE CLOSED"`
	DurationMinutes *int                    `json:"duration_minutes" validate:"omitempty,gt=0,lte=1440"`
	Deadline        *string                 `json:"deadline" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	VisibleFrom     *string                 `json:"visible_from" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Questions       []QuestionCreateRequest `json:"questions" validate:"omitempty,dive"`
}

// QuestionCreateRequest describes one question inside an assignment payload.
type QuestionCreateRequest struct {
	Prompt        string   `json:"prompt" validate:"required,min=1"`
	AnswerType    string   `json:"answer_type" validate:"required,oneof=MULTIPLE_CHOICE ESSAY"`
	Choices       []string `json:"choices" validate:"omitempty,dive,required"`
	CorrectAnswer string   `json:"correct_answer" validate:"omitempty,max=512"`
	Points        *int     `json:"points" validate:"omitempty,gt=0"`
	Position      int      `json:"position" validate:"omitempty,gt=0"`
}

// AssignmentStatusUpdateRequest changes the lifecycle status of an assignment.
type AssignmentStatusUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=DRAFT ACTIVE CLOSED"`
}

// AssignmentFilter describes query string filters for teacher assignment listings.
type AssignmentFilter struct {
	Status   *string `query:"status" validate:"omitempty,oneof=DRAFT ACTIVE CLOSED"`
	Search   string  `query:"search"`
	Sort     string  `query:"sort"`
	Page     int     `query:"page" validate:"omitempty,gte=1"`
	PageSize int     `query:"page_size" validate:"omitempty,gte=1,lte=100"`
}

// QuestionResponse is the serialized representation of a question.
type QuestionResponse struct {
	ID            uint     `json:"id"`
	Prompt        string   `json:"prompt"`
	AnswerType    string   `json:"answer_type"`
	Choices       []string `json:"choices,omitempty"`
	CorrectAnswer string   `json:"correct_answer,omitempty"`
	Points        int      `json:"points"`
	Position      int      `json:"position"`
}

// AssignmentResponse is the teacher-facing representation, including the answer key and PIN.
type AssignmentResponse struct {
	ID              uint               `json:"id"`
	Title           string             `json:"title"`
	Subject         string             `json:"subject"`
	Description     string             `json:"description"`
	TeacherID       uint               `json:"teacher_id"`
	ClassID         *uint              `json:"class_id"`
	Mode            string             `json:"mode"`
	Status          string             `json:"status"`
	DurationMinutes *int               `json:"duration_minutes"`
	Deadline        *time.Time         `json:"deadline"`
	VisibleFrom     *time.Time         `json:"visible_from"`
	AccessPin       string             `json:"access_pin,omitempty"`
	MaxScore        int                `json:"max_score"`
	Questions       []QuestionResponse `json:"questions,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// StudentAssignmentResponse hides the answer key and PIN.
type StudentAssignmentResponse struct {
	ID              uint               `json:"id"`
	Title           string             `json:"title"`
	Subject         string             `json:"subject"`
	Description     string             `json:"description"`
	Mode            string             `json:"mode"`
	Status          string             `json:"status"`
	ClassID         *uint              `json:"class_id"`
	DurationMinutes *int               `json:"duration_minutes"`
	Deadline        *time.Time         `json:"deadline"`
	VisibleFrom     *time.Time         `json:"visible_from"`
	RequiresPin     bool               `json:"requires_pin"`
	MaxScore        int                `json:"max_score"`
	Questions       []QuestionResponse `json:"questions,omitempty"`
}

// AssignmentListResponse wraps a paginated assignment list.
type AssignmentListResponse struct {
	Items      []AssignmentResponse `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
}

// ParseTimestamp converts an optional RFC3339 string into a time pointer.
func ParseTimestamp(value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(isoLayout, *value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func newQuestionResponse(question models.Question, withKey bool) QuestionResponse {
	response := QuestionResponse{
		ID:         question.ID,
		Prompt:     question.Prompt,
		AnswerType: string(question.AnswerType),
		Choices:    question.ChoiceList(),
		Points:     question.Points,
		Position:   question.Position,
	}
	if withKey {
		response.CorrectAnswer = question.CorrectAnswer
	}
	return response
}

func sumPoints(questions []models.Question) int {
	total := 0
	for _, question := range questions {
		total += question.Points
	}
	return total
}

// NewAssignmentResponse converts a model into the teacher DTO.
func NewAssignmentResponse(model models.Assignment) AssignmentResponse {
	response := AssignmentResponse{
		ID:              model.ID,
		Title:           model.Title,
		Subject:         model.Subject,
		Description:     model.Description,
		TeacherID:       model.TeacherID,
		ClassID:         model.ClassID,
		Mode:            string(model.Mode),
		Status:          string(model.Status),
		DurationMinutes: model.DurationMinutes,
		Deadline:        model.Deadline,
		VisibleFrom:     model.VisibleFrom,
		AccessPin:       model.AccessPin,
		MaxScore:        sumPoints(model.Questions),
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}

	if len(model.Questions) > 0 {
		response.Questions = make([]QuestionResponse, 0, len(model.Questions))
		for _, question := range model.Questions {
			response.Questions = append(response.Questions, newQuestionResponse(question, true))
		}
	}

	return response
}

// NewAssignmentResponseSlice converts a slice of models into DTOs.
func NewAssignmentResponseSlice(assignments []models.Assignment) []AssignmentResponse {
	responses := make([]AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, NewAssignmentResponse(assignment))
	}

	return responses
}

// NewStudentAssignmentResponse converts a model into the student DTO.
func NewStudentAssignmentResponse(model models.Assignment) StudentAssignmentResponse {
	response := StudentAssignmentResponse{
		ID:              model.ID,
		Title:           model.Title,
		Subject:         model.Subject,
		Description:     model.Description,
		Mode:            string(model.Mode),
		Status:          string(model.Status),
		ClassID:         model.ClassID,
		DurationMinutes: model.DurationMinutes,
		Deadline:        model.Deadline,
		VisibleFrom:     model.VisibleFrom,
		RequiresPin:     model.IsLive(),
		MaxScore:        sumPoints(model.Questions),
	}

	if len(model.Questions) > 0 {
		response.Questions = make([]QuestionResponse, 0, len(model.Questions))
		for _, question := range model.Questions {
			response.Questions = append(response.Questions, newQuestionResponse(question, false))
		}
	}

	return response
}

// NewStudentAssignmentResponseSlice converts a slice of models into student DTOs.
func NewStudentAssignmentResponseSlice(assignments []models.Assignment) []StudentAssignmentResponse {
	responses := make([]StudentAssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, NewStudentAssignmentResponse(assignment))
	}
	return responses
}
