package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nefziamine/skill-evaluator/internal/model"
)

// SettingRepository handles system_settings access.
type SettingRepository struct {
	pool *pgxpool.Pool
}

// NewSettingRepository creates a new SettingRepository.
func NewSettingRepository(pool *pgxpool.Pool) *SettingRepository {
	return &SettingRepository{pool: pool}
}

// GetAll returns every setting ordered by key.
func (r *SettingRepository) GetAll(ctx context.Context) ([]model.SystemSetting, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value, updated_at FROM system_settings ORDER BY key ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []model.SystemSetting
	for rows.Next() {
		var s model.SystemSetting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

// UpsertMany writes all settings in a single transaction.
func (r *SettingRepository) UpsertMany(ctx context.Context, settings map[string]string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for key, value := range settings {
		if _, err := tx.Exec(ctx,
			`INSERT INTO system_settings (key, value, updated_at) VALUES ($1, $2, NOW())
			 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
			key, value); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// GetByKey retrieves one setting. Returns pgx.ErrNoRows when absent.
func (r *SettingRepository) GetByKey(ctx context.Context, key string) (*model.SystemSetting, error) {
	s := &model.SystemSetting{}
	err := r.pool.QueryRow(ctx, `SELECT key, value, updated_at FROM system_settings WHERE key = $1`, key).
		Scan(&s.Key, &s.Value, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}
