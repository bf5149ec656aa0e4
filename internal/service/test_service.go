package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nefziamine/skill-evaluator/internal/config"
	"github.com/nefziamine/skill-evaluator/internal/model"
	"github.com/nefziamine/skill-evaluator/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// questionCacheTTL bounds how long a cached question set outlives an edit made
// outside this service.
const questionCacheTTL = time.Hour

// Test errors.
var (
	ErrTestNotFound    = errors.New("test not found")
	ErrNotTestOwner    = errors.New("test belongs to another recruiter")
	ErrUnknownQuestion = errors.New("one or more questions do not exist")
)

// TestService handles test composition and the question cache used while tests run.
type TestService struct {
	testRepo     *repository.TestRepository
	questionRepo *repository.QuestionRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewTestService creates a new TestService.
func NewTestService(
	testRepo *repository.TestRepository,
	questionRepo *repository.QuestionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *TestService {
	return &TestService{
		testRepo:     testRepo,
		questionRepo: questionRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "test_service").Logger(),
	}
}

// Create composes a test from bank questions in the given order.
func (s *TestService) Create(ctx context.Context, creatorID int64, req *model.CreateTestRequest) (*model.Test, error) {
	ids := dedupeIDs(req.QuestionIDs)
	questions, err := s.questionRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if len(questions) != len(ids) {
		return nil, ErrUnknownQuestion
	}

	total := req.TotalPoints
	if total == 0 {
		for _, q := range questions {
			total += q.Points
		}
	}

	test := &model.Test{
		Title:           req.Title,
		Description:     req.Description,
		CreatedBy:       creatorID,
		DurationMinutes: req.DurationMinutes,
		TotalPoints:     total,
		IsActive:        req.IsActive == nil || *req.IsActive,
	}
	if err := s.testRepo.Create(ctx, test, ids); err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}

	s.log.Info().Int64("test_id", test.ID).Int("questions", len(ids)).Msg("Test created")
	return test, nil
}

// Get returns a test. Recruiters only see their own tests; admins see all.
func (s *TestService) Get(ctx context.Context, id int64, actor *Claims) (*model.Test, error) {
	test, err := s.getTest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, test) {
		return nil, ErrNotTestOwner
	}
	return test, nil
}

// List returns the tests the actor manages.
func (s *TestService) List(ctx context.Context, actor *Claims) ([]model.Test, error) {
	creator := actor.UserID
	if actor.Role == model.RoleAdmin {
		creator = 0
	}
	tests, err := s.testRepo.ListByCreator(ctx, creator)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	if tests == nil {
		tests = []model.Test{}
	}
	return tests, nil
}

// ListActive returns the tests candidates may start.
func (s *TestService) ListActive(ctx context.Context) ([]model.Test, error) {
	tests, err := s.testRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active tests: %w", err)
	}
	if tests == nil {
		tests = []model.Test{}
	}
	return tests, nil
}

// SetActive opens or closes a test to new attempts. Running sessions are unaffected.
func (s *TestService) SetActive(ctx context.Context, id int64, active bool, actor *Claims) (*model.Test, error) {
	test, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if _, err := s.testRepo.SetActive(ctx, id, active); err != nil {
		return nil, fmt.Errorf("set active: %w", err)
	}
	test.IsActive = active
	return test, nil
}

// Questions returns the graded question set of a test in authored order,
// served from Redis when cached.
func (s *TestService) Questions(ctx context.Context, testID int64) ([]model.Question, error) {
	key := config.CacheKey.TestQuestionsKey(testID)

	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var questions []model.Question
		if err := json.Unmarshal(data, &questions); err == nil {
			return questions, nil
		}
		s.log.Warn().Int64("test_id", testID).Msg("Discarding malformed question cache")
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Int64("test_id", testID).Msg("Question cache unavailable, using database")
	}

	questions, err := s.questionRepo.ListByTest(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("list test questions: %w", err)
	}

	if raw, err := json.Marshal(questions); err == nil {
		if err := s.rdb.Set(ctx, key, raw, questionCacheTTL).Err(); err != nil {
			s.log.Warn().Err(err).Int64("test_id", testID).Msg("Failed to cache questions")
		}
	}
	return questions, nil
}

func (s *TestService) getTest(ctx context.Context, id int64) (*model.Test, error) {
	test, err := s.testRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("get test: %w", err)
	}
	return test, nil
}

func canManage(actor *Claims, test *model.Test) bool {
	if actor == nil {
		return false
	}
	return actor.Role == model.RoleAdmin || actor.UserID == test.CreatedBy
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
