package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/adapters/repository"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/domain"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/services"
)

type MockSettingsRepo struct {
	mock.Mock
}

func (m *MockSettingsRepo) Get(ctx context.Context, userID int64) (*domain.UserSettings, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserSettings), args.Error(1)
}

func (m *MockSettingsRepo) Upsert(ctx context.Context, s *domain.UserSettings) error {
	return m.Called(ctx, s).Error(0)
}

func TestSettingsService_Ensure(t *testing.T) {
	ctx := context.Background()

	t.Run("Success: Creates defaults once", func(t *testing.T) {
		repo := repository.NewInMemoryUserSettingsRepository()
		svc := services.NewSettingsService(repo, "Europe/Rome", "20:00")

		first, err := svc.EnsureUserSettings(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, "Europe/Rome", first.Timezone)
		assert.Equal(t, "20:00", first.DefaultReminderTime)

		second, err := svc.GetUserSettings(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, first.CreatedAt, second.CreatedAt)
	})

	t.Run("Fail: Store errors other than not-found are returned", func(t *testing.T) {
		repo := new(MockSettingsRepo)
		repo.On("Get", mock.Anything, owner).Return(nil, errors.New("timeout"))

		_, err := services.NewSettingsService(repo, "", "").EnsureUserSettings(ctx, owner)
		assert.EqualError(t, err, "timeout")
		repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})
}

func TestSettingsService_Update(t *testing.T) {
	ctx := context.Background()
	svc := services.NewSettingsService(repository.NewInMemoryUserSettingsRepository(), "", "")

	updated, err := svc.UpdateUserSettings(ctx, owner, "Europe/Berlin", "")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", updated.Timezone)
	assert.Equal(t, domain.DefaultReminderTime, updated.DefaultReminderTime)

	_, err = svc.UpdateUserSettings(ctx, owner, "Nowhere/City", "")
	assert.ErrorIs(t, err, domain.ErrInvalidTimezone)

	_, err = svc.UpdateUserSettings(ctx, owner, "", "7am")
	assert.ErrorIs(t, err, domain.ErrInvalidReminder)

	stored, err := svc.GetUserSettings(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", stored.Timezone, "rejected updates leave settings untouched")
}

func TestSettingsService_Today(t *testing.T) {
	ctx := context.Background()
	svc := services.NewSettingsService(repository.NewInMemoryUserSettingsRepository(), "Asia/Almaty", "")

	// 20:30 UTC is already the next day in Almaty.
	now := time.Date(2024, 3, 9, 20, 30, 0, 0, time.UTC)

	today, err := svc.Today(ctx, owner, now)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10", today.String())

	_, err = svc.UpdateUserSettings(ctx, owner, "UTC", "")
	require.NoError(t, err)
	today, err = svc.Today(ctx, owner, now)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-09", today.String())
}
