package model

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChoiceAnswer(t *testing.T) {
	q := CandidateQuestion{Type: QuestionTypeMCQ, Options: "red, green, blue"}

	got, err := ChoiceAnswer(q, 2)
	require.NoError(t, err)
	assert.Equal(t, "C", got)

	_, err = ChoiceAnswer(q, 3)
	assert.ErrorIs(t, err, ErrOptionOutOfRange)
	_, err = ChoiceAnswer(q, -1)
	assert.ErrorIs(t, err, ErrOptionOutOfRange)
}

func TestChoiceAnswer_NoLetterPastZ(t *testing.T) {
	opts := make([]string, MaxOptions+2)
	for i := range opts {
		opts[i] = "opt" + strconv.Itoa(i)
	}
	q := CandidateQuestion{Type: QuestionTypeMCQ, Options: strings.Join(opts, ",")}

	got, err := ChoiceAnswer(q, MaxOptions-1)
	require.NoError(t, err)
	assert.Equal(t, "Z", got)

	got, err = ChoiceAnswer(q, MaxOptions)
	assert.ErrorIs(t, err, ErrOptionOutOfRange)
	assert.Empty(t, got)
}

func TestLetterIndex(t *testing.T) {
	idx, ok := LetterIndex(" b ")
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "B", OptionLetter(idx))

	_, ok = LetterIndex("AA")
	assert.False(t, ok)
	assert.Empty(t, OptionLetter(MaxOptions))
}
