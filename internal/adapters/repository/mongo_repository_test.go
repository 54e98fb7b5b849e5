package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

func setupTestMongo(t *testing.T) *mongo.Database {
	t.Helper()
	ctx := context.Background()

	client, err := ConnectMongo(ctx, envOr("MONGO_URI", "mongodb://localhost:27017"))
	if err != nil {
		t.Skipf("Skipping integration tests: mongo connection failed: %v", err)
	}

	db := client.Database(fmt.Sprintf("habitbot_test_%d", time.Now().UnixNano()))
	require.NoError(t, EnsureMongoIndexes(ctx, db))

	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}

func TestMongoHabitRepository_Integration(t *testing.T) {
	db := setupTestMongo(t)
	repo := NewMongoHabitRepository(db)
	ctx := context.Background()

	const userID int64 = 31337
	habit := newTestHabit(t, userID, "Meditate", domain.Monthly{Day: 31})
	target := domain.MustParseDate("2024-12-31")
	habit.TargetDate = &target

	require.NoError(t, repo.Create(ctx, habit))

	t.Run("Round trip keeps dates and repeat", func(t *testing.T) {
		fetched, err := repo.GetByID(ctx, habit.ID, userID)
		require.NoError(t, err)
		assert.Equal(t, domain.RepeatMonthly, fetched.Repeat.Mode)
		require.NotNil(t, fetched.Repeat.MonthDay)
		assert.Equal(t, 31, *fetched.Repeat.MonthDay)
		require.NotNil(t, fetched.TargetDate)
		assert.Equal(t, "2024-12-31", fetched.TargetDate.String())
	})

	t.Run("Ownership", func(t *testing.T) {
		_, err := repo.GetByID(ctx, habit.ID, 1)
		assert.ErrorIs(t, err, domain.ErrHabitNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, habit.ID, 1), domain.ErrHabitNotFound)
	})

	t.Run("Streak and gate", func(t *testing.T) {
		day := domain.MustParseDate("2024-02-29")
		require.NoError(t, repo.UpdateStreak(ctx, habit.ID, domain.StreakState{Current: 2, Best: 4, LastCompletedOn: &day}))
		require.NoError(t, repo.SetReminderSentDate(ctx, habit.ID, &day))

		fetched, err := repo.GetByID(ctx, habit.ID, userID)
		require.NoError(t, err)
		assert.Equal(t, 2, fetched.CurrentStreak)
		assert.Equal(t, 4, fetched.BestStreak)
		require.NotNil(t, fetched.Reminder.LastSentDate)
		assert.True(t, fetched.Reminder.LastSentDate.Equal(day))
	})

	t.Run("Reminder users and listing", func(t *testing.T) {
		ids, err := repo.ListReminderUserIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{userID}, ids)

		habit.Archived = true
		require.NoError(t, repo.Update(ctx, habit))

		ids, err = repo.ListReminderUserIDs(ctx)
		require.NoError(t, err)
		assert.Empty(t, ids)

		active, err := repo.ListByUserID(ctx, userID, false)
		require.NoError(t, err)
		assert.Empty(t, active)
	})
}

func TestMongoCompletionRepository_Integration(t *testing.T) {
	db := setupTestMongo(t)
	repo := NewMongoCompletionRepository(db)
	ctx := context.Background()

	const userID int64 = 99
	day := domain.MustParseDate("2024-03-01")

	inserted, err := repo.Insert(ctx, domain.NewCompletion("h1", userID, day))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.Insert(ctx, domain.NewCompletion("h1", userID, day))
	require.NoError(t, err)
	assert.False(t, inserted, "second mark of the same day is a no-op")

	_, err = repo.Insert(ctx, domain.NewCompletion("h1", userID, day.AddDays(-1)))
	require.NoError(t, err)

	dates, err := repo.ListDates(ctx, "h1", day, 10)
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.True(t, dates[0].Equal(day))

	exists, err := repo.Exists(ctx, "h1", userID, day)
	require.NoError(t, err)
	assert.True(t, exists)

	removed, err := repo.Delete(ctx, "h1", userID, day)
	require.NoError(t, err)
	assert.True(t, removed)

	require.NoError(t, repo.DeleteByHabit(ctx, "h1", userID))
	list, err := repo.ListByUserAndRange(ctx, userID, day.AddDays(-7), day)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMongoUserSettingsRepository_Integration(t *testing.T) {
	db := setupTestMongo(t)
	repo := NewMongoUserSettingsRepository(db)
	ctx := context.Background()

	_, err := repo.Get(ctx, 5)
	assert.ErrorIs(t, err, domain.ErrSettingsNotFound)

	s, err := domain.NewUserSettings(5, "Asia/Almaty", "21:00")
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, s))

	s.DefaultReminderTime = "06:45"
	require.NoError(t, repo.Upsert(ctx, s))

	fetched, err := repo.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "06:45", fetched.DefaultReminderTime)
	assert.Equal(t, "Asia/Almaty", fetched.Timezone)
}
