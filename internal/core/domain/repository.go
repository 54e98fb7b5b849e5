package domain

import (
	"context"
	"errors"
)

var (
	ErrHabitNotFound      = errors.New("habit not found")
	ErrCompletionNotFound = errors.New("completion not found")
)

type HabitRepository interface {
	// Create persists a new habit definition in the storage.
	Create(ctx context.Context, habit *Habit) error

	// GetByID retrieves a habit owned by userID. Habits of other users are reported as ErrHabitNotFound.
	GetByID(ctx context.Context, id string, userID int64) (*Habit, error)

	// ListByUserID retrieves the user's habits ordered by creation time.
	ListByUserID(ctx context.Context, userID int64, includeArchived bool) ([]*Habit, error)

	// ListReminderUserIDs returns every user owning at least one active habit with reminders enabled.
	ListReminderUserIDs(ctx context.Context) ([]int64, error)

	// Update writes the descriptive, archive and reminder fields of an existing habit.
	Update(ctx context.Context, habit *Habit) error

	// UpdateStreak writes the cached streak fields and the reminder gate in one atomic write.
	UpdateStreak(ctx context.Context, id string, state StreakState) error

	// SetReminderSentDate sets or clears the reminder gate.
	SetReminderSentDate(ctx context.Context, id string, day *Date) error

	// Delete permanently removes a habit owned by userID.
	Delete(ctx context.Context, id string, userID int64) error
}

type CompletionRepository interface {
	// Insert stores the record unless one already exists for (HabitID, Date).
	// It reports whether a new record was written; a duplicate is not an error.
	Insert(ctx context.Context, c *Completion) (bool, error)

	// Delete removes the record for (habitID, day) and reports whether one existed.
	Delete(ctx context.Context, habitID string, userID int64, day Date) (bool, error)

	// DeleteByHabit removes every record of a habit.
	DeleteByHabit(ctx context.Context, habitID string, userID int64) error

	// Exists reports whether the habit has a record on day.
	Exists(ctx context.Context, habitID string, userID int64, day Date) (bool, error)

	// ListDates returns up to limit completion dates of a habit on or before upTo, newest first.
	ListDates(ctx context.Context, habitID string, upTo Date, limit int) ([]Date, error)

	// ListByUserAndRange returns the user's records with from <= date <= to.
	ListByUserAndRange(ctx context.Context, userID int64, from, to Date) ([]*Completion, error)
}

type UserSettingsRepository interface {
	// Get returns ErrSettingsNotFound when the user has none yet.
	Get(ctx context.Context, userID int64) (*UserSettings, error)

	// Upsert creates or replaces the user's settings.
	Upsert(ctx context.Context, settings *UserSettings) error
}

// Notifier delivers a rendered message to a user. Delivery failures are
// returned to the caller, which logs them and moves on.
type Notifier interface {
	Send(ctx context.Context, userID int64, text string) error
}
