package main

import (
	"testing"

	"github.com/nefziamine/skill-evaluator/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAnswer(t *testing.T) {
	mcq := model.CandidateQuestion{ID: 1, Type: model.QuestionTypeMCQ, Options: "red, green, blue"}
	tf := model.CandidateQuestion{ID: 2, Type: model.QuestionTypeTrueFalse}
	short := model.CandidateQuestion{ID: 3, Type: model.QuestionTypeShortAnswer}

	tests := []struct {
		name    string
		q       model.CandidateQuestion
		input   string
		want    string
		wantErr bool
	}{
		{"mcq letter", mcq, "b", "B", false},
		{"mcq number", mcq, "3", "C", false},
		{"mcq out of range letter", mcq, "D", "", true},
		{"mcq out of range number", mcq, "0", "", true},
		{"mcq word", mcq, "green", "", true},
		{"true short", tf, "T", "true", false},
		{"false word", tf, " False ", "false", false},
		{"tf nonsense", tf, "maybe", "", true},
		{"short text trimmed", short, "  a nil pointer ", "a nil pointer", false},
		{"empty", short, "   ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeAnswer(tt.q, tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
