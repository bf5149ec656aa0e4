package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/nefziamine/skill-evaluator/internal/model"
	"github.com/nefziamine/skill-evaluator/internal/repository"
)

// Question bank errors.
var (
	ErrInvalidOptions = errors.New("multiple choice questions need between two and 26 options")
	ErrInvalidAnswer  = errors.New("correct answer does not match the question type")
)

// QuestionService handles question bank business logic.
type QuestionService struct {
	questionRepo *repository.QuestionRepository
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questionRepo *repository.QuestionRepository) *QuestionService {
	return &QuestionService{questionRepo: questionRepo}
}

// Create validates and stores a question authored by creatorID.
func (s *QuestionService) Create(ctx context.Context, creatorID int64, req *model.CreateQuestionRequest) (*model.Question, error) {
	q, err := NewQuestion(req)
	if err != nil {
		return nil, err
	}
	q.CreatedBy = creatorID

	if err := s.questionRepo.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return q, nil
}

// NewQuestion normalizes a creation request into a question row.
// MCQ answers are stored as option letters, true/false answers as lower case literals.
func NewQuestion(req *model.CreateQuestionRequest) (*model.Question, error) {
	q := &model.Question{
		Text:          strings.TrimSpace(req.Text),
		Type:          model.QuestionType(req.Type),
		Skill:         strings.TrimSpace(req.Skill),
		Difficulty:    model.Difficulty(req.Difficulty),
		CorrectAnswer: strings.TrimSpace(req.CorrectAnswer),
		Explanation:   strings.TrimSpace(req.Explanation),
		Points:        req.Points,
	}
	if q.Points == 0 {
		q.Points = 1
	}

	switch q.Type {
	case model.QuestionTypeMCQ:
		opts := model.ParseOptions(req.Options)
		if len(opts) < 2 || len(opts) > model.MaxOptions {
			return nil, ErrInvalidOptions
		}
		idx, ok := model.LetterIndex(q.CorrectAnswer)
		if !ok || idx >= len(opts) {
			return nil, ErrInvalidAnswer
		}
		q.Options = strings.Join(opts, ",")
		q.CorrectAnswer = model.OptionLetter(idx)
	case model.QuestionTypeTrueFalse:
		answer := strings.ToLower(q.CorrectAnswer)
		if answer != "true" && answer != "false" {
			return nil, ErrInvalidAnswer
		}
		q.CorrectAnswer = answer
	}
	return q, nil
}

// Get returns one question with its answer key.
func (s *QuestionService) Get(ctx context.Context, id int64) (*model.Question, error) {
	q, err := s.questionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get question: %w", err)
	}
	return q, nil
}

// List returns the bank narrowed by filter.
func (s *QuestionService) List(ctx context.Context, filter model.QuestionFilter) ([]model.Question, error) {
	questions, err := s.questionRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if questions == nil {
		questions = []model.Question{}
	}
	return questions, nil
}

// Delete removes a question from the bank.
func (s *QuestionService) Delete(ctx context.Context, id int64) error {
	deleted, err := s.questionRepo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}
