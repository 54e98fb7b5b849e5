package repository

import (
	"context"
	"testing"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/adapters/cache"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb, err := cache.NewRedisClient(context.Background(), envOr("REDIS_ADDR", "localhost:6379"), envOr("REDIS_PASSWORD", ""), 2)
	if err != nil {
		t.Skipf("Skipping Redis integration test: %v", err)
	}
	require.NoError(t, rdb.FlushDB(context.Background()).Err())
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestCachedHabitRepository_Integration(t *testing.T) {
	rdb := setupTestRedis(t)
	backend := NewInMemoryHabitRepository()
	repo := NewCachedHabitRepository(backend, rdb, zap.NewNop())
	ctx := context.Background()

	const userID int64 = 5150
	habit := newTestHabit(t, userID, "Journal", domain.Daily{})
	require.NoError(t, repo.Create(ctx, habit))

	t.Run("List is served from cache", func(t *testing.T) {
		first, err := repo.ListByUserID(ctx, userID, false)
		require.NoError(t, err)
		require.Len(t, first, 1)

		exists, err := rdb.Exists(ctx, "habits:5150:active").Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), exists)

		other := newTestHabit(t, userID, "Sneaky", domain.Daily{})
		require.NoError(t, backend.Create(ctx, other))

		cached, err := repo.ListByUserID(ctx, userID, false)
		require.NoError(t, err)
		assert.Len(t, cached, 1, "write that bypassed the decorator is not visible yet")
	})

	t.Run("Gate write invalidates through owner index", func(t *testing.T) {
		day := domain.MustParseDate("2024-01-10")
		require.NoError(t, repo.SetReminderSentDate(ctx, habit.ID, &day))

		list, err := repo.ListByUserID(ctx, userID, false)
		require.NoError(t, err)
		require.Len(t, list, 2)
		for _, h := range list {
			if h.ID == habit.ID {
				require.NotNil(t, h.Reminder.LastSentDate)
				assert.True(t, h.Reminder.LastSentDate.Equal(day))
			}
		}
	})

	t.Run("Delete invalidates and forgets owner", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, habit.ID, userID))

		list, err := repo.ListByUserID(ctx, userID, false)
		require.NoError(t, err)
		assert.Len(t, list, 1)

		_, err = rdb.HGet(ctx, habitOwnersKey, habit.ID).Result()
		assert.ErrorIs(t, err, redis.Nil)
	})

	t.Run("Corrupted entry falls back to store", func(t *testing.T) {
		require.NoError(t, rdb.Set(ctx, "habits:5150:all", "{not json", 0).Err())

		list, err := repo.ListByUserID(ctx, userID, true)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}
