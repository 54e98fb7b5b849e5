package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/domain"
	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type PostgresHabitRepository struct {
	db *sqlx.DB
}

func NewPostgresHabitRepository(db *sqlx.DB) *PostgresHabitRepository {
	return &PostgresHabitRepository{db: db}
}

const habitColumns = `
	id, user_id, name, emoji, description, start_date, target_date, archived,
	repeat_mode, repeat_weekdays, repeat_week_day, repeat_month_day, repeat_interval_days,
	reminder_enabled, reminder_time, reminder_last_sent,
	current_streak, best_streak, last_completed_on, created_at, updated_at`

type scannable interface {
	Scan(dest ...interface{}) error
}

func (r *PostgresHabitRepository) scanRow(row scannable) (*domain.Habit, error) {
	var h domain.Habit
	var mode string
	var weekdaysJSON []byte

	err := row.Scan(
		&h.ID, &h.UserID, &h.Name, &h.Emoji, &h.Description, &h.StartDate, &h.TargetDate, &h.Archived,
		&mode, &weekdaysJSON, &h.Repeat.WeekDay, &h.Repeat.MonthDay, &h.Repeat.IntervalDays,
		&h.Reminder.Enabled, &h.Reminder.Time, &h.Reminder.LastSentDate,
		&h.CurrentStreak, &h.BestStreak, &h.LastCompletedOn, &h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	h.Repeat.Mode = domain.RepeatMode(mode)
	if len(weekdaysJSON) > 0 {
		if err := json.Unmarshal(weekdaysJSON, &h.Repeat.Weekdays); err != nil {
			return nil, fmt.Errorf("failed to unmarshal weekdays: %w", err)
		}
	}

	return &h, nil
}

func marshalWeekdays(days []int) ([]byte, error) {
	if len(days) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(days)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal weekdays: %w", err)
	}
	return b, nil
}

func (r *PostgresHabitRepository) Create(ctx context.Context, h *domain.Habit) error {
	weekdaysJSON, err := marshalWeekdays(h.Repeat.Weekdays)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO habits (` + habitColumns + `
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8,
            $9, $10, $11, $12, $13,
            $14, $15, $16,
            $17, $18, $19, $20, $21
        )`

	_, err = r.db.ExecContext(ctx, query,
		h.ID, h.UserID, h.Name, h.Emoji, h.Description, h.StartDate, h.TargetDate, h.Archived,
		string(h.Repeat.Mode), weekdaysJSON, h.Repeat.WeekDay, h.Repeat.MonthDay, h.Repeat.IntervalDays,
		h.Reminder.Enabled, h.Reminder.Time, h.Reminder.LastSentDate,
		h.CurrentStreak, h.BestStreak, h.LastCompletedOn, h.CreatedAt, h.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: create habit failed: %w", err)
	}
	return nil
}

func (r *PostgresHabitRepository) GetByID(ctx context.Context, id string, userID int64) (*domain.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE id = $1 AND user_id = $2`

	h, err := r.scanRow(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrHabitNotFound
		}
		return nil, fmt.Errorf("repository: get habit failed: %w", err)
	}
	return h, nil
}

func (r *PostgresHabitRepository) ListByUserID(ctx context.Context, userID int64, includeArchived bool) ([]*domain.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits
        WHERE user_id = $1 AND ($2 OR NOT archived)
        ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, userID, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("repository: list habits failed: %w", err)
	}
	defer rows.Close()

	habits := make([]*domain.Habit, 0)
	for rows.Next() {
		h, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: scan habit failed: %w", err)
		}
		habits = append(habits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: iterate habits failed: %w", err)
	}
	return habits, nil
}

func (r *PostgresHabitRepository) ListReminderUserIDs(ctx context.Context) ([]int64, error) {
	query := `SELECT DISTINCT user_id FROM habits
        WHERE reminder_enabled AND NOT archived
        ORDER BY user_id`

	ids := make([]int64, 0)
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("repository: list reminder users failed: %w", err)
	}
	return ids, nil
}

func (r *PostgresHabitRepository) Update(ctx context.Context, h *domain.Habit) error {
	weekdaysJSON, err := marshalWeekdays(h.Repeat.Weekdays)
	if err != nil {
		return err
	}

	query := `
        UPDATE habits SET
            name = $1, emoji = $2, description = $3, start_date = $4, target_date = $5, archived = $6,
            repeat_mode = $7, repeat_weekdays = $8, repeat_week_day = $9, repeat_month_day = $10, repeat_interval_days = $11,
            reminder_enabled = $12, reminder_time = $13, reminder_last_sent = $14,
            updated_at = $15
        WHERE id = $16 AND user_id = $17`

	updatedAt := h.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx, query,
		h.Name, h.Emoji, h.Description, h.StartDate, h.TargetDate, h.Archived,
		string(h.Repeat.Mode), weekdaysJSON, h.Repeat.WeekDay, h.Repeat.MonthDay, h.Repeat.IntervalDays,
		h.Reminder.Enabled, h.Reminder.Time, h.Reminder.LastSentDate,
		updatedAt,
		h.ID, h.UserID,
	)
	if err != nil {
		return fmt.Errorf("repository: update habit failed: %w", err)
	}
	return expectOneRow(result, domain.ErrHabitNotFound)
}

func (r *PostgresHabitRepository) UpdateStreak(ctx context.Context, id string, state domain.StreakState) error {
	query := `
        UPDATE habits SET
            current_streak = $1, best_streak = $2, last_completed_on = $3, reminder_last_sent = $4
        WHERE id = $5`

	result, err := r.db.ExecContext(ctx, query,
		state.Current, state.Best, state.LastCompletedOn, state.ReminderSentOn, id,
	)
	if err != nil {
		return fmt.Errorf("repository: update streak failed: %w", err)
	}
	return expectOneRow(result, domain.ErrHabitNotFound)
}

func (r *PostgresHabitRepository) SetReminderSentDate(ctx context.Context, id string, day *domain.Date) error {
	result, err := r.db.ExecContext(ctx, `UPDATE habits SET reminder_last_sent = $1 WHERE id = $2`, day, id)
	if err != nil {
		return fmt.Errorf("repository: set reminder gate failed: %w", err)
	}
	return expectOneRow(result, domain.ErrHabitNotFound)
}

// Delete removes the habit; its completions go with it through ON DELETE CASCADE.
func (r *PostgresHabitRepository) Delete(ctx context.Context, id string, userID int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM habits WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("repository: delete habit failed: %w", err)
	}
	return expectOneRow(result, domain.ErrHabitNotFound)
}

func expectOneRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: rows affected failed: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
