package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS habits (
	id                   TEXT PRIMARY KEY,
	user_id              BIGINT NOT NULL,
	name                 TEXT NOT NULL,
	emoji                TEXT NOT NULL,
	description          TEXT NOT NULL DEFAULT '',
	start_date           DATE NOT NULL,
	target_date          DATE,
	archived             BOOLEAN NOT NULL DEFAULT FALSE,
	repeat_mode          TEXT NOT NULL,
	repeat_weekdays      JSONB,
	repeat_week_day      INT,
	repeat_month_day     INT CHECK (repeat_month_day BETWEEN 1 AND 31),
	repeat_interval_days INT,
	reminder_enabled     BOOLEAN NOT NULL DEFAULT TRUE,
	reminder_time        TEXT NOT NULL,
	reminder_last_sent   DATE,
	current_streak       INT NOT NULL DEFAULT 0,
	best_streak          INT NOT NULL DEFAULT 0,
	last_completed_on    DATE,
	created_at           TIMESTAMPTZ NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_habits_user_created ON habits (user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_habits_reminders ON habits (user_id) WHERE reminder_enabled AND NOT archived;

CREATE TABLE IF NOT EXISTS completions (
	id              TEXT PRIMARY KEY,
	habit_id        TEXT NOT NULL REFERENCES habits (id) ON DELETE CASCADE,
	user_id         BIGINT NOT NULL,
	completion_date DATE NOT NULL,
	status          TEXT NOT NULL DEFAULT 'completed',
	created_at      TIMESTAMPTZ NOT NULL,
	UNIQUE (habit_id, completion_date)
);

CREATE INDEX IF NOT EXISTS idx_completions_user_date ON completions (user_id, completion_date);

CREATE TABLE IF NOT EXISTS user_settings (
	user_id               BIGINT PRIMARY KEY,
	timezone              TEXT NOT NULL,
	default_reminder_time TEXT NOT NULL,
	created_at            TIMESTAMPTZ NOT NULL,
	updated_at            TIMESTAMPTZ NOT NULL
);
`

// EnsurePostgresSchema creates the tables and indexes if they are missing.
func EnsurePostgresSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("repository: ensure schema failed: %w", err)
	}
	return nil
}

// pgErrorCode extracts the SQLSTATE from either driver's error type.
func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
