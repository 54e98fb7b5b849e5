package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var _ domain.HabitRepository = (*CachedHabitRepository)(nil)

const (
	habitListTTL   = 30 * time.Minute
	habitOwnersKey = "habits:owners"
)

// CachedHabitRepository caches per-user habit lists in Redis and invalidates
// them on every write. Writes keyed only by habit id (streak and reminder
// gate) find the owner through the habits:owners hash.
type CachedHabitRepository struct {
	next   domain.HabitRepository
	cache  *redis.Client
	logger *zap.Logger
}

func NewCachedHabitRepository(next domain.HabitRepository, cache *redis.Client, logger *zap.Logger) *CachedHabitRepository {
	return &CachedHabitRepository{
		next:   next,
		cache:  cache,
		logger: logger.Named("habit_cache"),
	}
}

func (r *CachedHabitRepository) cacheKey(userID int64, includeArchived bool) string {
	if includeArchived {
		return fmt.Sprintf("habits:%d:all", userID)
	}
	return fmt.Sprintf("habits:%d:active", userID)
}

func (r *CachedHabitRepository) invalidate(ctx context.Context, userID int64) {
	err := r.cache.Del(ctx, r.cacheKey(userID, true), r.cacheKey(userID, false)).Err()
	if err != nil {
		r.logger.Warn("cache invalidation failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func (r *CachedHabitRepository) invalidateOwner(ctx context.Context, habitID string) {
	owner, err := r.cache.HGet(ctx, habitOwnersKey, habitID).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("cache owner lookup failed", zap.String("habit_id", habitID), zap.Error(err))
		}
		return
	}
	r.invalidate(ctx, owner)
}

func (r *CachedHabitRepository) rememberOwners(ctx context.Context, habits []*domain.Habit) {
	if len(habits) == 0 {
		return
	}
	fields := make([]interface{}, 0, len(habits)*2)
	for _, h := range habits {
		fields = append(fields, h.ID, strconv.FormatInt(h.UserID, 10))
	}
	if err := r.cache.HSet(ctx, habitOwnersKey, fields...).Err(); err != nil {
		r.logger.Warn("cache owner index failed", zap.Error(err))
	}
}

func (r *CachedHabitRepository) ListByUserID(ctx context.Context, userID int64, includeArchived bool) ([]*domain.Habit, error) {
	key := r.cacheKey(userID, includeArchived)

	val, err := r.cache.Get(ctx, key).Result()
	if err == nil {
		var habits []*domain.Habit
		if err := json.Unmarshal([]byte(val), &habits); err == nil {
			return habits, nil
		}

		r.logger.Warn("corrupted cache entry, cleaning up", zap.String("key", key))
		r.cache.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		r.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}

	habits, err := r.next.ListByUserID(ctx, userID, includeArchived)
	if err != nil {
		return nil, err
	}

	r.rememberOwners(ctx, habits)
	if data, err := json.Marshal(habits); err == nil {
		if setErr := r.cache.Set(ctx, key, data, habitListTTL).Err(); setErr != nil {
			r.logger.Warn("cache write failed", zap.String("key", key), zap.Error(setErr))
		}
	}

	return habits, nil
}

func (r *CachedHabitRepository) GetByID(ctx context.Context, id string, userID int64) (*domain.Habit, error) {
	return r.next.GetByID(ctx, id, userID)
}

func (r *CachedHabitRepository) ListReminderUserIDs(ctx context.Context) ([]int64, error) {
	return r.next.ListReminderUserIDs(ctx)
}

func (r *CachedHabitRepository) Create(ctx context.Context, habit *domain.Habit) error {
	if err := r.next.Create(ctx, habit); err != nil {
		return err
	}
	r.rememberOwners(ctx, []*domain.Habit{habit})
	r.invalidate(ctx, habit.UserID)
	return nil
}

func (r *CachedHabitRepository) Update(ctx context.Context, habit *domain.Habit) error {
	if err := r.next.Update(ctx, habit); err != nil {
		return err
	}
	r.invalidate(ctx, habit.UserID)
	return nil
}

func (r *CachedHabitRepository) UpdateStreak(ctx context.Context, id string, state domain.StreakState) error {
	defer r.invalidateOwner(ctx, id)
	return r.next.UpdateStreak(ctx, id, state)
}

func (r *CachedHabitRepository) SetReminderSentDate(ctx context.Context, id string, day *domain.Date) error {
	defer r.invalidateOwner(ctx, id)
	return r.next.SetReminderSentDate(ctx, id, day)
}

func (r *CachedHabitRepository) Delete(ctx context.Context, id string, userID int64) error {
	if err := r.next.Delete(ctx, id, userID); err != nil {
		return err
	}
	r.invalidate(ctx, userID)
	if err := r.cache.HDel(ctx, habitOwnersKey, id).Err(); err != nil {
		r.logger.Warn("cache owner cleanup failed", zap.String("habit_id", id), zap.Error(err))
	}
	return nil
}
