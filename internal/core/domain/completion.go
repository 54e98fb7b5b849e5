package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidCompletion = errors.New("invalid completion record")
)

const CompletionStatusDone = "done"

// Completion records that a habit was done on a date. (HabitID, Date) is unique.
type Completion struct {
	ID        string    `json:"id" db:"id"`
	HabitID   string    `json:"habit_id" db:"habit_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Date      Date      `json:"date" db:"completion_date"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func NewCompletion(habitID string, userID int64, day Date) *Completion {
	return &Completion{
		ID:        uuid.NewString(),
		HabitID:   habitID,
		UserID:    userID,
		Date:      day,
		Status:    CompletionStatusDone,
		CreatedAt: time.Now().UTC(),
	}
}

func (c *Completion) Validate() error {
	if strings.TrimSpace(c.HabitID) == "" {
		return fmt.Errorf("%w: habit_id is required", ErrInvalidCompletion)
	}
	if c.UserID == 0 {
		return fmt.Errorf("%w: user_id is required", ErrInvalidCompletion)
	}
	if c.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidCompletion)
	}
	return nil
}
