package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nefziamine/skill-evaluator/internal/model"
)

var errEmptyAnswer = errors.New("answer is empty")

// normalizeAnswer maps what the candidate typed to the wire form of the question:
// an option letter for MCQ, "true"/"false", or the trimmed free text.
func normalizeAnswer(q model.CandidateQuestion, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errEmptyAnswer
	}

	switch q.Type {
	case model.QuestionTypeMCQ:
		// Options are shown lettered, but a 1-based number is accepted too.
		if n, err := strconv.Atoi(input); err == nil {
			return model.ChoiceAnswer(q, n-1)
		}
		idx, ok := model.LetterIndex(input)
		if !ok {
			return "", fmt.Errorf("pick an option letter between A and %s", model.OptionLetter(len(q.OptionList())-1))
		}
		return model.ChoiceAnswer(q, idx)

	case model.QuestionTypeTrueFalse:
		switch strings.ToLower(input) {
		case "true", "t", "yes", "y":
			return "true", nil
		case "false", "f", "no":
			return "false", nil
		}
		return "", errors.New("answer true or false")

	default:
		return input, nil
	}
}
