package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/domain"
	"github.com/jmoiron/sqlx"
)

type PostgresUserSettingsRepository struct {
	db *sqlx.DB
}

func NewPostgresUserSettingsRepository(db *sqlx.DB) *PostgresUserSettingsRepository {
	return &PostgresUserSettingsRepository{db: db}
}

func (r *PostgresUserSettingsRepository) Get(ctx context.Context, userID int64) (*domain.UserSettings, error) {
	query := `
        SELECT user_id, timezone, default_reminder_time, created_at, updated_at
        FROM user_settings WHERE user_id = $1`

	var s domain.UserSettings
	if err := r.db.GetContext(ctx, &s, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSettingsNotFound
		}
		return nil, fmt.Errorf("repository: get settings failed: %w", err)
	}
	return &s, nil
}

// Upsert keeps the original created_at when the row already exists.
func (r *PostgresUserSettingsRepository) Upsert(ctx context.Context, s *domain.UserSettings) error {
	query := `
        INSERT INTO user_settings (user_id, timezone, default_reminder_time, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (user_id) DO UPDATE SET
            timezone = EXCLUDED.timezone,
            default_reminder_time = EXCLUDED.default_reminder_time,
            updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		s.UserID, s.Timezone, s.DefaultReminderTime, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: upsert settings failed: %w", err)
	}
	return nil
}
