package service

import (
	"strconv"
	"strings"
	"testing"

	"github.com/nefziamine/skill-evaluator/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQuestion_MCQ(t *testing.T) {
	q, err := NewQuestion(&model.CreateQuestionRequest{
		Text:          " Which keyword starts a goroutine? ",
		Type:          "MCQ",
		Skill:         "go",
		Difficulty:    "EASY",
		Options:       "defer, go ,, chan",
		CorrectAnswer: "b",
	})
	require.NoError(t, err)

	assert.Equal(t, "Which keyword starts a goroutine?", q.Text)
	assert.Equal(t, "defer,go,chan", q.Options)
	assert.Equal(t, "B", q.CorrectAnswer)
	assert.Equal(t, 1, q.Points)
}

func TestNewQuestion_Errors(t *testing.T) {
	tests := []struct {
		name    string
		req     model.CreateQuestionRequest
		wantErr error
	}{
		{"single option", model.CreateQuestionRequest{Type: "MCQ", Options: "only", CorrectAnswer: "A"}, ErrInvalidOptions},
		{"more options than letters", model.CreateQuestionRequest{Type: "MCQ", Options: manyOptions(27), CorrectAnswer: "A"}, ErrInvalidOptions},
		{"letter past options", model.CreateQuestionRequest{Type: "MCQ", Options: "a,b", CorrectAnswer: "C"}, ErrInvalidAnswer},
		{"not a letter", model.CreateQuestionRequest{Type: "MCQ", Options: "a,b", CorrectAnswer: "first"}, ErrInvalidAnswer},
		{"bad boolean", model.CreateQuestionRequest{Type: "TRUE_FALSE", CorrectAnswer: "yes"}, ErrInvalidAnswer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewQuestion(&tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewQuestion_TrueFalseNormalized(t *testing.T) {
	q, err := NewQuestion(&model.CreateQuestionRequest{Type: "TRUE_FALSE", CorrectAnswer: "TRUE", Points: 3})
	require.NoError(t, err)
	assert.Equal(t, "true", q.CorrectAnswer)
	assert.Equal(t, 3, q.Points)
}

func manyOptions(n int) string {
	opts := make([]string, n)
	for i := range opts {
		opts[i] = "opt" + strconv.Itoa(i+1)
	}
	return strings.Join(opts, ",")
}
