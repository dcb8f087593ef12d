package service

import (
	"strings"

	"github.com/noah-isme/gema-classroom-api/internal/models"
)

// GradeAnswer auto-grades a captured response. Multiple choice answers are
// compared with the key after trimming and case folding, all or nothing.
// Essay answers are never auto-graded and yield (nil, 0).
func GradeAnswer(question models.Question, response string) (*bool, int) {
	if question.AnswerType != models.AnswerTypeMultipleChoice {
		return nil, 0
	}

	correct := normalizeChoice(response) == normalizeChoice(question.CorrectAnswer)
	if !correct {
		return &correct, 0
	}
	return &correct, question.Points
}

func normalizeChoice(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// MaxScore sums the points of every question.
func MaxScore(questions []models.Question) int {
	total := 0
	for _, question := range questions {
		if question.Points > 0 {
			total += question.Points
		}
	}
	return total
}

// RawScore sums the points awarded across answers.
func RawScore(answers []models.Answer) int {
	total := 0
	for _, answer := range answers {
		if answer.Points > 0 {
			total += answer.Points
		}
	}
	return total
}

// HasEssay reports whether any question needs manual grading.
func HasEssay(questions []models.Question) bool {
	for _, question := range questions {
		if question.IsEssay() {
			return true
		}
	}
	return false
}

// FinalGrade converts a raw score into an integer percentage, rounding half
// up. A zero max score yields 0.
func FinalGrade(rawScore, maxScore int) int {
	if maxScore <= 0 || rawScore <= 0 {
		return 0
	}
	if rawScore >= maxScore {
		return 100
	}
	// round(raw*100/max), halves up, in integer arithmetic.
	return (rawScore*200 + maxScore) / (2 * maxScore)
}
