package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/domain"
)

type SettingsService struct {
	repo                domain.UserSettingsRepository
	defaultTimezone     string
	defaultReminderTime string
}

func NewSettingsService(repo domain.UserSettingsRepository, defaultTimezone, defaultReminderTime string) *SettingsService {
	if defaultTimezone == "" {
		defaultTimezone = domain.DefaultTimezone
	}
	if defaultReminderTime == "" {
		defaultReminderTime = domain.DefaultReminderTime
	}
	return &SettingsService{
		repo:                repo,
		defaultTimezone:     defaultTimezone,
		defaultReminderTime: defaultReminderTime,
	}
}

// EnsureUserSettings returns the user's settings, creating them with the
// process defaults on first contact.
func (s *SettingsService) EnsureUserSettings(ctx context.Context, userID int64) (*domain.UserSettings, error) {
	existing, err := s.repo.Get(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrSettingsNotFound) {
		return nil, err
	}

	settings, err := domain.NewUserSettings(userID, s.defaultTimezone, s.defaultReminderTime)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, settings); err != nil {
		return nil, fmt.Errorf("settings service: failed to create settings: %w", err)
	}
	return settings, nil
}

func (s *SettingsService) GetUserSettings(ctx context.Context, userID int64) (*domain.UserSettings, error) {
	return s.EnsureUserSettings(ctx, userID)
}

// UpdateUserSettings applies a partial change; empty arguments keep the stored value.
func (s *SettingsService) UpdateUserSettings(ctx context.Context, userID int64, timezone, reminderTime string) (*domain.UserSettings, error) {
	settings, err := s.EnsureUserSettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	changed, err := settings.Apply(timezone, reminderTime)
	if err != nil {
		return nil, err
	}
	if !changed {
		return settings, nil
	}

	if err := s.repo.Upsert(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// Today resolves the calendar date in the user's timezone at instant now.
func (s *SettingsService) Today(ctx context.Context, userID int64, now time.Time) (domain.Date, error) {
	settings, err := s.EnsureUserSettings(ctx, userID)
	if err != nil {
		return domain.Date{}, err
	}

	fallback, err := domain.LoadLocation(s.defaultTimezone)
	if err != nil {
		fallback = time.UTC
	}
	return domain.Today(now, settings.Location(fallback)), nil
}

func (s *SettingsService) DefaultReminderTime() string {
	return s.defaultReminderTime
}
