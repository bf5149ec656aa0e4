package model

import (
	"errors"
	"strings"
	"time"
)

// QuestionType is the closed set of question kinds.
type QuestionType string

const (
	QuestionTypeMCQ         QuestionType = "MCQ"
	QuestionTypeTrueFalse   QuestionType = "TRUE_FALSE"
	QuestionTypeShortAnswer QuestionType = "SHORT_ANSWER"
)

// Difficulty grades a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// ErrOptionOutOfRange is returned when a choice index has no matching option.
var ErrOptionOutOfRange = errors.New("option index out of range")

// Question is the full question row, including the answer key. Never sent to candidates.
type Question struct {
	ID            int64        `json:"id"`
	Text          string       `json:"text"`
	Type          QuestionType `json:"type"`
	Skill         string       `json:"skill"`
	Difficulty    Difficulty   `json:"difficulty"`
	Options       string       `json:"options,omitempty"`
	CorrectAnswer string       `json:"correct_answer"`
	Explanation   string       `json:"explanation,omitempty"`
	Points        int          `json:"points"`
	CreatedBy     int64        `json:"created_by"`
	CreatedAt     time.Time    `json:"created_at"`
}

// ForCandidate strips the answer key and explanation.
func (q Question) ForCandidate() CandidateQuestion {
	return CandidateQuestion{
		ID:      q.ID,
		Text:    q.Text,
		Type:    q.Type,
		Skill:   q.Skill,
		Options: q.Options,
		Points:  q.Points,
	}
}

// CandidateQuestion is the question as shown during a test session.
type CandidateQuestion struct {
	ID      int64        `json:"id"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Skill   string       `json:"skill,omitempty"`
	Options string       `json:"options,omitempty"`
	Points  int          `json:"points"`
}

// OptionList splits the comma-separated options, trimming each one.
func (q CandidateQuestion) OptionList() []string {
	return ParseOptions(q.Options)
}

// ParseOptions splits a comma-separated option string. Empty entries are dropped.
func ParseOptions(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	opts := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			opts = append(opts, t)
		}
	}
	return opts
}

// MaxOptions is the number of options an MCQ can carry, one per letter A-Z.
const MaxOptions = 26

// OptionLetter maps a zero-based option position to its answer letter (0 -> "A").
// Positions past MaxOptions have no letter.
func OptionLetter(index int) string {
	if index < 0 || index >= MaxOptions {
		return ""
	}
	return string(rune('A' + index))
}

// LetterIndex is the inverse of OptionLetter. It accepts lower case letters.
func LetterIndex(letter string) (int, bool) {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if len(letter) != 1 || letter[0] < 'A' || letter[0] > 'Z' {
		return 0, false
	}
	return int(letter[0] - 'A'), true
}

// ChoiceAnswer returns the answer letter for option index of an MCQ question.
func ChoiceAnswer(q CandidateQuestion, index int) (string, error) {
	if index < 0 || index >= len(q.OptionList()) || index >= MaxOptions {
		return "", ErrOptionOutOfRange
	}
	return OptionLetter(index), nil
}

// CreateQuestionRequest is the payload for adding a question to the bank.
type CreateQuestionRequest struct {
	Text          string `json:"text" binding:"required,notblank,max=1000"`
	Type          string `json:"type" binding:"required,oneof=MCQ TRUE_FALSE SHORT_ANSWER"`
	Skill         string `json:"skill" binding:"required,notblank,max=100"`
	Difficulty    string `json:"difficulty" binding:"required,oneof=EASY MEDIUM HARD"`
	Options       string `json:"options" binding:"required_if=Type MCQ,max=2000"`
	CorrectAnswer string `json:"correct_answer" binding:"required,notblank,max=500"`
	Explanation   string `json:"explanation" binding:"omitempty,max=1000"`
	Points        int    `json:"points" binding:"omitempty,min=1,max=100"`
}

// QuestionFilter narrows a question bank listing.
type QuestionFilter struct {
	Skill      string `form:"skill"`
	Difficulty string `form:"difficulty" binding:"omitempty,oneof=EASY MEDIUM HARD"`
	Type       string `form:"type" binding:"omitempty,oneof=MCQ TRUE_FALSE SHORT_ANSWER"`
}
