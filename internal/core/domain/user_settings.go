package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrSettingsNotFound = errors.New("user settings not found")
	ErrInvalidTimezone  = errors.New("invalid timezone (must be an IANA zone name)")
)

const DefaultTimezone = "Asia/Almaty"

// UserSettings holds the per-user timezone and default reminder time.
type UserSettings struct {
	UserID              int64     `json:"user_id" db:"user_id"`
	Timezone            string    `json:"timezone" db:"timezone"`
	DefaultReminderTime string    `json:"default_reminder_time" db:"default_reminder_time"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

func NewUserSettings(userID int64, timezone, reminderTime string) (*UserSettings, error) {
	if userID == 0 {
		return nil, ErrHabitInvalidUserID
	}

	timezone = strings.TrimSpace(timezone)
	if _, err := LoadLocation(timezone); err != nil {
		return nil, err
	}
	if !ValidReminderTime(reminderTime) {
		return nil, ErrInvalidReminder
	}

	now := time.Now().UTC()
	return &UserSettings{
		UserID:              userID,
		Timezone:            timezone,
		DefaultReminderTime: reminderTime,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// Apply validates and applies a partial settings change. Empty values are ignored.
func (s *UserSettings) Apply(timezone, reminderTime string) (bool, error) {
	changed := false

	if tz := strings.TrimSpace(timezone); tz != "" && tz != s.Timezone {
		if _, err := LoadLocation(tz); err != nil {
			return false, err
		}
		s.Timezone = tz
		changed = true
	}

	if reminderTime != "" && reminderTime != s.DefaultReminderTime {
		if !ValidReminderTime(reminderTime) {
			return false, ErrInvalidReminder
		}
		s.DefaultReminderTime = reminderTime
		changed = true
	}

	if changed {
		s.UpdatedAt = time.Now().UTC()
	}
	return changed, nil
}

// Location resolves the user's zone, falling back to fallback when the stored name is unusable.
func (s *UserSettings) Location(fallback *time.Location) *time.Location {
	loc, err := LoadLocation(s.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}

func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return nil, ErrInvalidTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, ErrInvalidTimezone
	}
	return loc, nil
}
