package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nefziamine/skill-evaluator/internal/model"
)

// TestRepository handles test data access.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

const testColumns = `t.id, t.title, t.description, t.created_by, t.duration_minutes, t.total_points,
	(SELECT COUNT(*) FROM test_questions tq WHERE tq.test_id = t.id), t.is_active, t.created_at, t.updated_at`

func scanTest(row interface{ Scan(...any) error }) (*model.Test, error) {
	t := &model.Test{}
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.CreatedBy, &t.DurationMinutes, &t.TotalPoints,
		&t.QuestionCount, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetByID retrieves a test by ID.
func (r *TestRepository) GetByID(ctx context.Context, id int64) (*model.Test, error) {
	return scanTest(r.pool.QueryRow(ctx, `SELECT `+testColumns+` FROM tests t WHERE t.id = $1`, id))
}

// ListActive returns the tests candidates may start.
func (r *TestRepository) ListActive(ctx context.Context) ([]model.Test, error) {
	return r.list(ctx, `SELECT `+testColumns+` FROM tests t WHERE t.is_active ORDER BY t.created_at DESC`)
}

// ListByCreator returns tests authored by creatorID. Pass 0 to list all tests.
func (r *TestRepository) ListByCreator(ctx context.Context, creatorID int64) ([]model.Test, error) {
	if creatorID == 0 {
		return r.list(ctx, `SELECT `+testColumns+` FROM tests t ORDER BY t.created_at DESC`)
	}
	return r.list(ctx, `SELECT `+testColumns+` FROM tests t WHERE t.created_by = $1 ORDER BY t.created_at DESC`, creatorID)
}

func (r *TestRepository) list(ctx context.Context, query string, args ...any) ([]model.Test, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, *t)
	}
	return tests, rows.Err()
}

// Create inserts the test and its ordered question links in one transaction.
func (r *TestRepository) Create(ctx context.Context, t *model.Test, questionIDs []int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO tests (title, description, created_by, duration_minutes, total_points, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		t.Title, t.Description, t.CreatedBy, t.DurationMinutes, t.TotalPoints, t.IsActive,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert test: %w", err)
	}

	batch := &pgx.Batch{}
	for i, qid := range questionIDs {
		batch.Queue(`INSERT INTO test_questions (test_id, question_id, position) VALUES ($1, $2, $3)`, t.ID, qid, i)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("link questions: %w", err)
	}

	t.QuestionCount = len(questionIDs)
	return tx.Commit(ctx)
}

// SetActive toggles availability. Returns false when the test does not exist.
func (r *TestRepository) SetActive(ctx context.Context, id int64, active bool) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tests SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
