package repository

import (
	"context"
	"fmt"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/domain"
	"github.com/jmoiron/sqlx"
)

type PostgresCompletionRepository struct {
	db *sqlx.DB
}

func NewPostgresCompletionRepository(db *sqlx.DB) *PostgresCompletionRepository {
	return &PostgresCompletionRepository{db: db}
}

// Insert relies on the (habit_id, completion_date) unique constraint, so
// concurrent marks of the same day collapse into a single row.
func (r *PostgresCompletionRepository) Insert(ctx context.Context, c *domain.Completion) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}

	query := `
        INSERT INTO completions (id, habit_id, user_id, completion_date, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (habit_id, completion_date) DO NOTHING`

	result, err := r.db.ExecContext(ctx, query,
		c.ID, c.HabitID, c.UserID, c.Date, c.Status, c.CreatedAt,
	)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return false, domain.ErrHabitNotFound
		}
		return false, fmt.Errorf("repository: insert completion failed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("repository: rows affected failed: %w", err)
	}
	return rows == 1, nil
}

func (r *PostgresCompletionRepository) Delete(ctx context.Context, habitID string, userID int64, day domain.Date) (bool, error) {
	query := `DELETE FROM completions WHERE habit_id = $1 AND user_id = $2 AND completion_date = $3`

	result, err := r.db.ExecContext(ctx, query, habitID, userID, day)
	if err != nil {
		return false, fmt.Errorf("repository: delete completion failed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("repository: rows affected failed: %w", err)
	}
	return rows > 0, nil
}

func (r *PostgresCompletionRepository) DeleteByHabit(ctx context.Context, habitID string, userID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM completions WHERE habit_id = $1 AND user_id = $2`, habitID, userID)
	if err != nil {
		return fmt.Errorf("repository: delete habit completions failed: %w", err)
	}
	return nil
}

func (r *PostgresCompletionRepository) Exists(ctx context.Context, habitID string, userID int64, day domain.Date) (bool, error) {
	query := `SELECT EXISTS (
        SELECT 1 FROM completions WHERE habit_id = $1 AND user_id = $2 AND completion_date = $3
    )`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, habitID, userID, day); err != nil {
		return false, fmt.Errorf("repository: completion lookup failed: %w", err)
	}
	return exists, nil
}

func (r *PostgresCompletionRepository) ListDates(ctx context.Context, habitID string, upTo domain.Date, limit int) ([]domain.Date, error) {
	query := `
        SELECT completion_date FROM completions
        WHERE habit_id = $1 AND completion_date <= $2
        ORDER BY completion_date DESC
        LIMIT $3`

	dates := make([]domain.Date, 0)
	if err := r.db.SelectContext(ctx, &dates, query, habitID, upTo, limit); err != nil {
		return nil, fmt.Errorf("repository: list completion dates failed: %w", err)
	}
	return dates, nil
}

func (r *PostgresCompletionRepository) ListByUserAndRange(ctx context.Context, userID int64, from, to domain.Date) ([]*domain.Completion, error) {
	query := `
        SELECT id, habit_id, user_id, completion_date, status, created_at
        FROM completions
        WHERE user_id = $1 AND completion_date BETWEEN $2 AND $3
        ORDER BY completion_date ASC, habit_id ASC`

	out := make([]*domain.Completion, 0)
	if err := r.db.SelectContext(ctx, &out, query, userID, from, to); err != nil {
		return nil, fmt.Errorf("repository: list completions failed: %w", err)
	}
	return out, nil
}
