package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nefziamine/skill-evaluator/internal/model"
)

// ScoredSession is the minimal projection used to rank completed sessions.
type ScoredSession struct {
	ID    int64
	Score int
}

// TestSessionRepository handles test session data access.
type TestSessionRepository struct {
	pool *pgxpool.Pool
}

// NewTestSessionRepository creates a new TestSessionRepository.
func NewTestSessionRepository(pool *pgxpool.Pool) *TestSessionRepository {
	return &TestSessionRepository{pool: pool}
}

const sessionColumns = `id, test_id, candidate_id, started_at, expires_at, submitted_at, is_completed,
	score, total_points, answers, skill_breakdown, status`

func scanSession(row interface{ Scan(...any) error }) (*model.TestSession, error) {
	s := &model.TestSession{}
	err := row.Scan(&s.ID, &s.TestID, &s.CandidateID, &s.StartedAt, &s.ExpiresAt, &s.SubmittedAt,
		&s.IsCompleted, &s.Score, &s.TotalPoints, &s.Answers, &s.SkillBreakdown, &s.Status)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByID retrieves a session by ID.
func (r *TestSessionRepository) GetByID(ctx context.Context, id int64) (*model.TestSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM test_sessions WHERE id = $1`, id))
}

// GetOpen retrieves the incomplete session of a candidate for a test.
// Returns pgx.ErrNoRows when there is none.
func (r *TestSessionRepository) GetOpen(ctx context.Context, testID, candidateID int64) (*model.TestSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM test_sessions
		 WHERE test_id = $1 AND candidate_id = $2 AND is_completed = FALSE`, testID, candidateID))
}

// HasCompleted reports whether the candidate already finished an attempt at the test.
func (r *TestSessionRepository) HasCompleted(ctx context.Context, testID, candidateID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM test_sessions
		 WHERE test_id = $1 AND candidate_id = $2 AND is_completed = TRUE)`, testID, candidateID,
	).Scan(&exists)
	return exists, err
}

// Create inserts a new open session. When a concurrent request already opened one,
// nothing is inserted and pgx.ErrNoRows is returned so the caller can resume it.
func (r *TestSessionRepository) Create(ctx context.Context, s *model.TestSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO test_sessions (test_id, candidate_id, started_at, expires_at, total_points, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (test_id, candidate_id) WHERE is_completed = FALSE DO NOTHING
		 RETURNING id`,
		s.TestID, s.CandidateID, s.StartedAt, s.ExpiresAt, s.TotalPoints, model.SessionStatusInProgress,
	).Scan(&s.ID)
}

// Complete finalizes an open session. It returns false when the session was
// already completed, which makes concurrent submissions lose cleanly.
func (r *TestSessionRepository) Complete(ctx context.Context, s *model.TestSession) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE test_sessions
		 SET is_completed = TRUE, score = $1, answers = $2, skill_breakdown = $3,
		     status = $4, submitted_at = $5
		 WHERE id = $6 AND is_completed = FALSE`,
		s.Score, s.Answers, s.SkillBreakdown, s.Status, s.SubmittedAt, s.ID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListByCandidate returns every session of a candidate, newest first.
func (r *TestSessionRepository) ListByCandidate(ctx context.Context, candidateID int64) ([]model.TestSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM test_sessions
		 WHERE candidate_id = $1
		 ORDER BY started_at DESC`, candidateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.TestSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// ListByTest returns the attempts at a test joined with their candidates, paginated.
func (r *TestSessionRepository) ListByTest(ctx context.Context, testID int64, page, perPage int) ([]model.CandidateAttempt, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM test_sessions WHERE test_id = $1`, testID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT ts.id, u.id, u.username, u.full_name, ts.score, ts.total_points,
		        ts.status, ts.started_at, ts.submitted_at
		 FROM test_sessions ts
		 JOIN users u ON u.id = ts.candidate_id
		 WHERE ts.test_id = $1
		 ORDER BY ts.score DESC NULLS LAST, ts.started_at ASC
		 LIMIT $2 OFFSET $3`, testID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var attempts []model.CandidateAttempt
	for rows.Next() {
		var a model.CandidateAttempt
		if err := rows.Scan(&a.SessionID, &a.CandidateID, &a.Username, &a.FullName, &a.Score,
			&a.TotalPoints, &a.Status, &a.StartedAt, &a.SubmittedAt); err != nil {
			return nil, 0, err
		}
		attempts = append(attempts, a)
	}
	return attempts, total, rows.Err()
}

// CompletedScores returns the completed sessions of a test, best score first.
// Ties keep submission order.
func (r *TestSessionRepository) CompletedScores(ctx context.Context, testID int64) ([]ScoredSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, COALESCE(score, 0) FROM test_sessions
		 WHERE test_id = $1 AND is_completed = TRUE
		 ORDER BY score DESC NULLS LAST, submitted_at ASC, id ASC`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []ScoredSession
	for rows.Next() {
		var s ScoredSession
		if err := rows.Scan(&s.ID, &s.Score); err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// ListOverdue returns open sessions whose deadline passed before cutoff.
func (r *TestSessionRepository) ListOverdue(ctx context.Context, cutoff time.Time, limit int) ([]model.TestSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM test_sessions
		 WHERE is_completed = FALSE AND expires_at < $1
		 ORDER BY expires_at ASC
		 LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.TestSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// UpsertAnswers persists autosaved answers for a session in one batch.
func (r *TestSessionRepository) UpsertAnswers(ctx context.Context, sessionID int64, answers map[int64]string) error {
	if len(answers) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for qid, answer := range answers {
		batch.Queue(
			`INSERT INTO session_answers (session_id, question_id, answer, updated_at)
			 VALUES ($1, $2, $3, NOW())
			 ON CONFLICT (session_id, question_id)
			 DO UPDATE SET answer = EXCLUDED.answer, updated_at = NOW()`,
			sessionID, qid, answer)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

// LoadAnswers returns the answers persisted for a session.
func (r *TestSessionRepository) LoadAnswers(ctx context.Context, sessionID int64) (map[int64]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, answer FROM session_answers WHERE session_id = $1`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := make(map[int64]string)
	for rows.Next() {
		var qid int64
		var answer string
		if err := rows.Scan(&qid, &answer); err != nil {
			return nil, err
		}
		answers[qid] = answer
	}
	return answers, rows.Err()
}
