package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-classroom-api/internal/models"
)

func TestGradeAnswerMultipleChoiceIgnoresCaseAndWhitespace(t *testing.T) {
	question := models.Question{AnswerType: models.AnswerTypeMultipleChoice, CorrectAnswer: "Paris", Points: 10}

	correctA, pointsA := GradeAnswer(question, "Paris")
	correctB, pointsB := GradeAnswer(question, "  paris ")

	require.NotNil(t, correctA)
	require.NotNil(t, correctB)
	require.True(t, *correctA)
	require.Equal(t, *correctA, *correctB)
	require.Equal(t, 10, pointsA)
	require.Equal(t, pointsA, pointsB)
}

func TestGradeAnswerMultipleChoiceIsAllOrNothing(t *testing.T) {
	question := models.Question{AnswerType: models.AnswerTypeMultipleChoice, CorrectAnswer: "B", Points: 7}

	correct, points := GradeAnswer(question, "Bb")
	require.NotNil(t, correct)
	require.False(t, *correct)
	require.Zero(t, points)
}

func TestGradeAnswerIsDeterministic(t *testing.T) {
	question := models.Question{AnswerType: models.AnswerTypeMultipleChoice, CorrectAnswer: "c", Points: 4}

	for i := 0; i < 20; i++ {
		correct, points := GradeAnswer(question, "C ")
		require.True(t, *correct)
		require.Equal(t, 4, points)
	}
}

func TestGradeAnswerEssayIsNeverAutoGraded(t *testing.T) {
	question := models.Question{AnswerType: models.AnswerTypeEssay, CorrectAnswer: "anything", Points: 10}

	correct, points := GradeAnswer(question, "anything")
	require.Nil(t, correct)
	require.Zero(t, points)
}

func TestFinalGradeRoundsHalfUp(t *testing.T) {
	cases := []struct {
		name     string
		raw, max int
		want     int
	}{
		{name: "full marks", raw: 20, max: 20, want: 100},
		{name: "essay scenario", raw: 25, max: 30, want: 83},
		{name: "exact half rounds up", raw: 1, max: 8, want: 13},
		{name: "two thirds", raw: 2, max: 3, want: 67},
		{name: "one third", raw: 1, max: 3, want: 33},
		{name: "zero raw", raw: 0, max: 30, want: 0},
		{name: "zero max", raw: 0, max: 0, want: 0},
		{name: "raw above max clamps", raw: 40, max: 30, want: 100},
		{name: "negative raw clamps", raw: -5, max: 30, want: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, FinalGrade(tc.raw, tc.max))
		})
	}
}

func TestScoreHelpers(t *testing.T) {
	questions := []models.Question{
		{AnswerType: models.AnswerTypeMultipleChoice, Points: 10},
		{AnswerType: models.AnswerTypeEssay, Points: 15},
	}
	answers := []models.Answer{{Points: 10}, {Points: 4}}

	require.Equal(t, 25, MaxScore(questions))
	require.Equal(t, 14, RawScore(answers))
	require.True(t, HasEssay(questions))
	require.False(t, HasEssay(questions[:1]))
	require.Zero(t, MaxScore(nil))
}
