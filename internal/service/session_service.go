package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nefziamine/skill-evaluator/internal/config"
	"github.com/nefziamine/skill-evaluator/internal/event"
	"github.com/nefziamine/skill-evaluator/internal/model"
	"github.com/nefziamine/skill-evaluator/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Session errors.
var (
	ErrTestInactive       = errors.New("test is not active")
	ErrNoQuestions        = errors.New("test has no questions")
	ErrSessionNotFound    = errors.New("test session not found")
	ErrSessionCompleted   = errors.New("test session already completed")
	ErrSessionExpired     = errors.New("test session has expired")
	ErrNoActiveSession    = errors.New("no active session for this test")
	ErrSessionNotFinished = errors.New("test session is not completed yet")
	ErrNotSessionOwner    = errors.New("test session belongs to another candidate")
	ErrQuestionNotInTest  = errors.New("question is not part of this test")
)

// expirySweepBatch caps how many overdue sessions one sweep finalizes.
const expirySweepBatch = 100

// SessionService runs candidate attempts: start or resume, autosave, submit, and results.
type SessionService struct {
	sessionRepo *repository.TestSessionRepository
	testService *TestService
	settings    *SettingService
	rdb         *redis.Client
	publisher   event.Publisher
	grace       time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	cfg *config.Config,
	sessionRepo *repository.TestSessionRepository,
	testService *TestService,
	settings *SettingService,
	rdb *redis.Client,
	publisher event.Publisher,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		testService: testService,
		settings:    settings,
		rdb:         rdb,
		publisher:   publisher,
		grace:       cfg.SubmitGrace,
		now:         time.Now,
		log:         log.With().Str("component", "session_service").Logger(),
	}
}

// Start opens a new attempt or resumes the candidate's unexpired one.
func (s *SessionService) Start(ctx context.Context, testID, candidateID int64) (*model.StartSessionResponse, error) {
	test, err := s.testService.getTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if !test.IsActive {
		return nil, ErrTestInactive
	}

	questions, err := s.testService.Questions(ctx, testID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	now := s.now()
	open, err := s.sessionRepo.GetOpen(ctx, testID, candidateID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check open session: %w", err)
	}

	if open != nil {
		if now.Before(open.ExpiresAt) {
			return s.buildStartResponse(ctx, open, test, questions, now)
		}
		// The deadline passed with the attempt still open: close it with what was autosaved.
		if _, err := s.finalizeWithSaved(ctx, open, questions, model.SessionStatusExpired, now); err != nil {
			return nil, err
		}
		if !s.settings.AllowRetakes(ctx) {
			return nil, ErrSessionExpired
		}
	} else if !s.settings.AllowRetakes(ctx) {
		done, err := s.sessionRepo.HasCompleted(ctx, testID, candidateID)
		if err != nil {
			return nil, fmt.Errorf("check completed session: %w", err)
		}
		if done {
			return nil, ErrSessionCompleted
		}
	}

	sess := &model.TestSession{
		TestID:      testID,
		CandidateID: candidateID,
		StartedAt:   now,
		ExpiresAt:   now.Add(time.Duration(test.DurationMinutes) * time.Minute),
		TotalPoints: test.TotalPoints,
		Status:      model.SessionStatusInProgress,
	}
	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("create session: %w", err)
		}
		// Concurrent start: another request opened the attempt first.
		existing, fetchErr := s.sessionRepo.GetOpen(ctx, testID, candidateID)
		if fetchErr != nil {
			return nil, fmt.Errorf("concurrent start detected, but fetch failed: %w", fetchErr)
		}
		return s.buildStartResponse(ctx, existing, test, questions, now)
	}

	if err := s.publisher.PublishSessionStarted(ctx, sess); err != nil {
		s.log.Warn().Err(err).Int64("session_id", sess.ID).Msg("Failed to publish session started")
	}
	s.log.Info().
		Int64("session_id", sess.ID).
		Int64("test_id", testID).
		Int64("candidate_id", candidateID).
		Msg("Session started")

	return s.buildStartResponse(ctx, sess, test, questions, now)
}

func (s *SessionService) buildStartResponse(
	ctx context.Context,
	sess *model.TestSession,
	test *model.Test,
	questions []model.Question,
	now time.Time,
) (*model.StartSessionResponse, error) {
	saved, err := s.savedAnswers(ctx, sess.ID)
	if err != nil {
		return nil, err
	}

	ordered := ShuffleQuestions(questions, sess.ID)
	payload := make([]model.CandidateQuestion, len(ordered))
	for i, q := range ordered {
		payload[i] = q.ForCandidate()
	}

	return &model.StartSessionResponse{
		SessionID:            sess.ID,
		Test:                 *test,
		Questions:            payload,
		TimeRemainingSeconds: sess.RemainingSeconds(now),
		SavedAnswers:         saved,
	}, nil
}

// ShuffleQuestions returns a per-session permutation of questions. The same
// session always gets the same order so a resumed attempt looks unchanged.
func ShuffleQuestions(questions []model.Question, sessionID int64) []model.Question {
	out := make([]model.Question, len(questions))
	copy(out, questions)
	r := rand.New(rand.NewPCG(uint64(sessionID), uint64(len(questions))))
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Submit grades the candidate's answers and closes the attempt.
// Manual submissions are refused after the deadline; automatic ones are
// accepted within the configured grace period.
func (s *SessionService) Submit(ctx context.Context, testID, candidateID int64, req *model.SubmitTestRequest) (*model.SubmitTestResult, error) {
	sess, err := s.sessionRepo.GetOpen(ctx, testID, candidateID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get open session: %w", err)
		}
		done, err := s.sessionRepo.HasCompleted(ctx, testID, candidateID)
		if err != nil {
			return nil, fmt.Errorf("check completed session: %w", err)
		}
		if done {
			return nil, ErrSessionCompleted
		}
		return nil, ErrNoActiveSession
	}

	now := s.now()
	if err := CheckDeadline(sess.ExpiresAt, now, req.AutoSubmit, s.grace); err != nil {
		return nil, err
	}

	questions, err := s.testService.Questions(ctx, testID)
	if err != nil {
		return nil, err
	}

	saved, err := s.savedAnswers(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	for qid, answer := range req.Answers {
		saved[qid] = answer
	}

	status := model.SessionStatusSubmitted
	if req.AutoSubmit {
		status = model.SessionStatusAutoSubmitted
	}

	ok, err := s.finalize(ctx, sess, questions, saved, status, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionCompleted
	}

	score := *sess.Score
	pct := Percentage(score, sess.TotalPoints)
	msg := "Test submitted successfully"
	if req.AutoSubmit {
		msg = "Test auto-submitted when time ran out"
	}

	return &model.SubmitTestResult{
		SessionID:   sess.ID,
		Score:       score,
		TotalPoints: sess.TotalPoints,
		Percentage:  pct,
		Passed:      pct >= s.settings.PassingPercentage(ctx),
		Status:      status,
		Message:     msg,
	}, nil
}

// CheckDeadline decides whether a submission arriving at now is still accepted.
func CheckDeadline(expiresAt, now time.Time, auto bool, grace time.Duration) error {
	if !now.After(expiresAt) {
		return nil
	}
	if !auto || now.After(expiresAt.Add(grace)) {
		return ErrSessionExpired
	}
	return nil
}

// Autosave records one answer of a running attempt. The answer lands in Redis
// immediately and is queued for the autosave worker to persist.
func (s *SessionService) Autosave(ctx context.Context, testID, candidateID, questionID int64, answer string) error {
	sess, err := s.activeSession(ctx, testID, candidateID)
	if err != nil {
		return err
	}

	questions, err := s.testService.Questions(ctx, testID)
	if err != nil {
		return err
	}
	if !containsQuestion(questions, questionID) {
		return ErrQuestionNotInTest
	}

	entry, err := json.Marshal(model.AutosaveEntry{SessionID: sess.ID, QuestionID: questionID, Answer: answer})
	if err != nil {
		return fmt.Errorf("marshal autosave: %w", err)
	}

	key := config.CacheKey.SessionAnswersKey(sess.ID)
	ttl := time.Until(sess.ExpiresAt) + s.grace + time.Hour
	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, key, strconv.FormatInt(questionID, 10), answer)
	pipe.Expire(ctx, key, ttl)
	pipe.RPush(ctx, config.WorkerKey.PersistAnswersQueue, entry)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("autosave: %w", err)
	}
	return nil
}

// Remaining returns the seconds left in the candidate's running attempt.
func (s *SessionService) Remaining(ctx context.Context, testID, candidateID int64) (int64, int, error) {
	sess, err := s.activeSession(ctx, testID, candidateID)
	if err != nil {
		return 0, 0, err
	}
	return sess.ID, sess.RemainingSeconds(s.now()), nil
}

func (s *SessionService) activeSession(ctx context.Context, testID, candidateID int64) (*model.TestSession, error) {
	sess, err := s.sessionRepo.GetOpen(ctx, testID, candidateID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveSession
		}
		return nil, fmt.Errorf("get open session: %w", err)
	}
	if !s.now().Before(sess.ExpiresAt) {
		return nil, ErrSessionExpired
	}
	return sess, nil
}

// FinalizeExpired closes attempts whose deadline and grace period have passed,
// scoring whatever was autosaved. It returns how many sessions were closed.
func (s *SessionService) FinalizeExpired(ctx context.Context) (int, error) {
	now := s.now()
	overdue, err := s.sessionRepo.ListOverdue(ctx, now.Add(-s.grace), expirySweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list overdue sessions: %w", err)
	}

	closed := 0
	for i := range overdue {
		sess := &overdue[i]
		questions, err := s.testService.Questions(ctx, sess.TestID)
		if err != nil {
			s.log.Error().Err(err).Int64("session_id", sess.ID).Msg("Failed to load questions for expired session")
			continue
		}
		ok, err := s.finalizeWithSaved(ctx, sess, questions, model.SessionStatusExpired, now)
		if err != nil {
			s.log.Error().Err(err).Int64("session_id", sess.ID).Msg("Failed to finalize expired session")
			continue
		}
		if ok {
			closed++
		}
	}
	return closed, nil
}

func (s *SessionService) finalizeWithSaved(
	ctx context.Context,
	sess *model.TestSession,
	questions []model.Question,
	status model.SessionStatus,
	now time.Time,
) (bool, error) {
	saved, err := s.savedAnswers(ctx, sess.ID)
	if err != nil {
		return false, err
	}
	return s.finalize(ctx, sess, questions, saved, status, now)
}

// finalize grades answers and completes the session. It reports false when
// another request completed it first.
func (s *SessionService) finalize(
	ctx context.Context,
	sess *model.TestSession,
	questions []model.Question,
	answers map[int64]string,
	status model.SessionStatus,
	now time.Time,
) (bool, error) {
	kept := make(map[int64]string, len(answers))
	for _, q := range questions {
		if a, ok := answers[q.ID]; ok {
			kept[q.ID] = a
		}
	}

	grade := GradeAnswers(questions, kept)
	sess.Score = &grade.Score
	sess.SkillBreakdown = grade.SkillBreakdown
	sess.Answers = kept
	sess.Status = status
	sess.SubmittedAt = &now
	sess.IsCompleted = true

	ok, err := s.sessionRepo.Complete(ctx, sess)
	if err != nil {
		return false, fmt.Errorf("complete session: %w", err)
	}
	if !ok {
		return false, nil
	}

	if err := s.rdb.Del(ctx, config.CacheKey.SessionAnswersKey(sess.ID)).Err(); err != nil {
		s.log.Warn().Err(err).Int64("session_id", sess.ID).Msg("Failed to clear autosaved answers")
	}
	if err := s.publisher.PublishSessionCompleted(ctx, sess); err != nil {
		s.log.Warn().Err(err).Int64("session_id", sess.ID).Msg("Failed to publish session completed")
	}

	s.log.Info().
		Int64("session_id", sess.ID).
		Str("status", string(status)).
		Int("score", grade.Score).
		Int("total_points", sess.TotalPoints).
		Msg("Session completed")
	return true, nil
}

// savedAnswers merges persisted answers with the newer ones still in Redis.
func (s *SessionService) savedAnswers(ctx context.Context, sessionID int64) (map[int64]string, error) {
	answers, err := s.sessionRepo.LoadAnswers(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load saved answers: %w", err)
	}

	cached, err := s.rdb.HGetAll(ctx, config.CacheKey.SessionAnswersKey(sessionID)).Result()
	if err != nil {
		s.log.Warn().Err(err).Int64("session_id", sessionID).Msg("Autosave cache unavailable")
		return answers, nil
	}
	for k, v := range cached {
		qid, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		answers[qid] = v
	}
	return answers, nil
}

// ListMine returns the candidate's attempts, newest first.
func (s *SessionService) ListMine(ctx context.Context, candidateID int64) ([]model.TestSession, error) {
	sessions, err := s.sessionRepo.ListByCandidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []model.TestSession{}
	}
	return sessions, nil
}

// Result returns the outcome of a completed attempt to its owner.
func (s *SessionService) Result(ctx context.Context, sessionID, candidateID int64) (*model.SessionResult, error) {
	sess, err := s.completedSession(ctx, sessionID, candidateID)
	if err != nil {
		return nil, err
	}

	test, err := s.testService.getTest(ctx, sess.TestID)
	if err != nil {
		return nil, err
	}

	score := 0
	if sess.Score != nil {
		score = *sess.Score
	}
	pct := Percentage(score, sess.TotalPoints)

	return &model.SessionResult{
		SessionID:      sess.ID,
		TestTitle:      test.Title,
		Score:          score,
		TotalPoints:    sess.TotalPoints,
		Percentage:     pct,
		Passed:         pct >= s.settings.PassingPercentage(ctx),
		SkillBreakdown: sess.SkillBreakdown,
		SubmittedAt:    sess.SubmittedAt,
		Status:         sess.Status,
	}, nil
}

// Rank positions a completed attempt among all completed attempts of its test.
func (s *SessionService) Rank(ctx context.Context, sessionID, candidateID int64) (*model.SessionRank, error) {
	sess, err := s.completedSession(ctx, sessionID, candidateID)
	if err != nil {
		return nil, err
	}

	scores, err := s.sessionRepo.CompletedScores(ctx, sess.TestID)
	if err != nil {
		return nil, fmt.Errorf("load scores: %w", err)
	}
	rank, ok := RankOf(scores, sess.ID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &rank, nil
}

func (s *SessionService) completedSession(ctx context.Context, sessionID, candidateID int64) (*model.TestSession, error) {
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.CandidateID != candidateID {
		return nil, ErrNotSessionOwner
	}
	if !sess.IsCompleted {
		return nil, ErrSessionNotFinished
	}
	return sess, nil
}

// ListAttempts returns the attempts at a test the actor manages.
func (s *SessionService) ListAttempts(ctx context.Context, testID int64, actor *Claims, page, perPage int) ([]model.CandidateAttempt, int64, error) {
	if _, err := s.testService.Get(ctx, testID, actor); err != nil {
		return nil, 0, err
	}
	attempts, total, err := s.sessionRepo.ListByTest(ctx, testID, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list attempts: %w", err)
	}
	if attempts == nil {
		attempts = []model.CandidateAttempt{}
	}
	return attempts, total, nil
}

func containsQuestion(questions []model.Question, id int64) bool {
	for _, q := range questions {
		if q.ID == id {
			return true
		}
	}
	return false
}
