package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/domain"
)

func cloneHabit(h *domain.Habit) *domain.Habit {
	clone := *h
	if h.Repeat.Weekdays != nil {
		clone.Repeat.Weekdays = append([]int(nil), h.Repeat.Weekdays...)
	}
	return &clone
}

type InMemoryHabitRepository struct {
	store map[string]*domain.Habit

	mu sync.RWMutex
}

func NewInMemoryHabitRepository() *InMemoryHabitRepository {
	return &InMemoryHabitRepository{
		store: make(map[string]*domain.Habit),
	}
}

func (r *InMemoryHabitRepository) Create(ctx context.Context, habit *domain.Habit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.store[habit.ID] = cloneHabit(habit)
	return nil
}

func (r *InMemoryHabitRepository) GetByID(ctx context.Context, id string, userID int64) (*domain.Habit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	habit, ok := r.store[id]
	if !ok || habit.UserID != userID {
		return nil, domain.ErrHabitNotFound
	}
	return cloneHabit(habit), nil
}

func (r *InMemoryHabitRepository) ListByUserID(ctx context.Context, userID int64, includeArchived bool) ([]*domain.Habit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	habits := make([]*domain.Habit, 0)
	for _, h := range r.store {
		if h.UserID != userID || (h.Archived && !includeArchived) {
			continue
		}
		habits = append(habits, cloneHabit(h))
	}

	sort.Slice(habits, func(i, j int) bool {
		if habits[i].CreatedAt.Equal(habits[j].CreatedAt) {
			return habits[i].ID < habits[j].ID
		}
		return habits[i].CreatedAt.Before(habits[j].CreatedAt)
	})

	return habits, nil
}

func (r *InMemoryHabitRepository) ListReminderUserIDs(ctx context.Context) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[int64]struct{})
	ids := make([]int64, 0)
	for _, h := range r.store {
		if h.Archived || !h.Reminder.Enabled {
			continue
		}
		if _, ok := seen[h.UserID]; ok {
			continue
		}
		seen[h.UserID] = struct{}{}
		ids = append(ids, h.UserID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *InMemoryHabitRepository) Update(ctx context.Context, habit *domain.Habit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.store[habit.ID]
	if !ok || existing.UserID != habit.UserID {
		return domain.ErrHabitNotFound
	}

	r.store[habit.ID] = cloneHabit(habit)
	return nil
}

func (r *InMemoryHabitRepository) UpdateStreak(ctx context.Context, id string, state domain.StreakState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.store[id]
	if !ok {
		return domain.ErrHabitNotFound
	}
	h.CurrentStreak = state.Current
	h.BestStreak = state.Best
	h.LastCompletedOn = state.LastCompletedOn
	h.Reminder.LastSentDate = state.ReminderSentOn
	return nil
}

func (r *InMemoryHabitRepository) SetReminderSentDate(ctx context.Context, id string, day *domain.Date) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.store[id]
	if !ok {
		return domain.ErrHabitNotFound
	}
	h.Reminder.LastSentDate = day
	return nil
}

func (r *InMemoryHabitRepository) Delete(ctx context.Context, id string, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.store[id]
	if !ok || h.UserID != userID {
		return domain.ErrHabitNotFound
	}

	delete(r.store, id)
	return nil
}

// InMemoryCompletionRepository keys records by (habit id, date); the map key
// plays the role of the unique index.
type InMemoryCompletionRepository struct {
	store map[completionKey]*domain.Completion

	mu sync.RWMutex
}

type completionKey struct {
	habitID string
	day     string
}

func NewInMemoryCompletionRepository() *InMemoryCompletionRepository {
	return &InMemoryCompletionRepository{
		store: make(map[completionKey]*domain.Completion),
	}
}

func (r *InMemoryCompletionRepository) Insert(ctx context.Context, c *domain.Completion) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := completionKey{habitID: c.HabitID, day: c.Date.String()}
	if _, exists := r.store[key]; exists {
		return false, nil
	}
	clone := *c
	r.store[key] = &clone
	return true, nil
}

func (r *InMemoryCompletionRepository) Delete(ctx context.Context, habitID string, userID int64, day domain.Date) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := completionKey{habitID: habitID, day: day.String()}
	c, ok := r.store[key]
	if !ok || c.UserID != userID {
		return false, nil
	}
	delete(r.store, key)
	return true, nil
}

func (r *InMemoryCompletionRepository) DeleteByHabit(ctx context.Context, habitID string, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, c := range r.store {
		if c.HabitID == habitID && c.UserID == userID {
			delete(r.store, key)
		}
	}
	return nil
}

func (r *InMemoryCompletionRepository) Exists(ctx context.Context, habitID string, userID int64, day domain.Date) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.store[completionKey{habitID: habitID, day: day.String()}]
	return ok && c.UserID == userID, nil
}

func (r *InMemoryCompletionRepository) ListDates(ctx context.Context, habitID string, upTo domain.Date, limit int) ([]domain.Date, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dates := make([]domain.Date, 0)
	for _, c := range r.store {
		if c.HabitID == habitID && !c.Date.After(upTo) {
			dates = append(dates, c.Date)
		}
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })
	if limit > 0 && len(dates) > limit {
		dates = dates[:limit]
	}
	return dates, nil
}

func (r *InMemoryCompletionRepository) ListByUserAndRange(ctx context.Context, userID int64, from, to domain.Date) ([]*domain.Completion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Completion, 0)
	for _, c := range r.store {
		if c.UserID != userID || c.Date.Before(from) || c.Date.After(to) {
			continue
		}
		clone := *c
		out = append(out, &clone)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].HabitID < out[j].HabitID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

type InMemoryUserSettingsRepository struct {
	store map[int64]*domain.UserSettings

	mu sync.RWMutex
}

func NewInMemoryUserSettingsRepository() *InMemoryUserSettingsRepository {
	return &InMemoryUserSettingsRepository{
		store: make(map[int64]*domain.UserSettings),
	}
}

func (r *InMemoryUserSettingsRepository) Get(ctx context.Context, userID int64) (*domain.UserSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.store[userID]
	if !ok {
		return nil, domain.ErrSettingsNotFound
	}
	clone := *s
	return &clone, nil
}

func (r *InMemoryUserSettingsRepository) Upsert(ctx context.Context, settings *domain.UserSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *settings
	if existing, ok := r.store[settings.UserID]; ok {
		clone.CreatedAt = existing.CreatedAt
	}
	r.store[settings.UserID] = &clone
	return nil
}
