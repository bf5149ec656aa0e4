package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nefziamine/skill-evaluator/internal/model"
)

// QuestionRepository handles question bank data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

const questionColumns = `q.id, q.text, q.type, q.skill, q.difficulty, q.options, q.correct_answer,
	q.explanation, q.points, COALESCE(q.created_by, 0), q.created_at`

func scanQuestion(row interface{ Scan(...any) error }) (*model.Question, error) {
	q := &model.Question{}
	err := row.Scan(&q.ID, &q.Text, &q.Type, &q.Skill, &q.Difficulty, &q.Options, &q.CorrectAnswer,
		&q.Explanation, &q.Points, &q.CreatedBy, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	return q, nil
}

func collectQuestions(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]model.Question, error) {
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}

// GetByID retrieves a question by ID.
func (r *QuestionRepository) GetByID(ctx context.Context, id int64) (*model.Question, error) {
	return scanQuestion(r.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions q WHERE q.id = $1`, id))
}

// Create inserts a new question into the bank.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (text, type, skill, difficulty, options, correct_answer, explanation, points, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, 0))
		 RETURNING id, created_at`,
		q.Text, q.Type, q.Skill, q.Difficulty, q.Options, q.CorrectAnswer, q.Explanation, q.Points, q.CreatedBy,
	).Scan(&q.ID, &q.CreatedAt)
}

// List returns the bank filtered by skill, difficulty and type (empty fields match all).
func (r *QuestionRepository) List(ctx context.Context, f model.QuestionFilter) ([]model.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions q WHERE TRUE`
	var args []any
	if f.Skill != "" {
		args = append(args, f.Skill)
		query += ` AND q.skill = $` + formatInt(len(args))
	}
	if f.Difficulty != "" {
		args = append(args, f.Difficulty)
		query += ` AND q.difficulty = $` + formatInt(len(args))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		query += ` AND q.type = $` + formatInt(len(args))
	}
	query += ` ORDER BY q.id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectQuestions(rows)
}

// ListByTest returns the questions of a test in their authored position.
func (r *QuestionRepository) ListByTest(ctx context.Context, testID int64) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+`
		 FROM test_questions tq
		 JOIN questions q ON q.id = tq.question_id
		 WHERE tq.test_id = $1
		 ORDER BY tq.position`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectQuestions(rows)
}

// ListByIDs returns the questions whose IDs are given, in ID order.
func (r *QuestionRepository) ListByIDs(ctx context.Context, ids []int64) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions q WHERE q.id = ANY($1) ORDER BY q.id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectQuestions(rows)
}

// Delete removes a question from the bank. Returns false when nothing was deleted.
func (r *QuestionRepository) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
