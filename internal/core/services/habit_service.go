package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/domain"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/recurrence"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/workers"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/metrics"
)

type HabitService struct {
	repo        domain.HabitRepository
	completions domain.CompletionRepository
	settings    *SettingsService
	worker      *workers.StreakRepairWorker
	now         func() time.Time
}

// NewHabitService wires the lifecycle operations. worker may be nil, in which
// case streak repairs run inline.
func NewHabitService(repo domain.HabitRepository, completions domain.CompletionRepository, settings *SettingsService, worker *workers.StreakRepairWorker) *HabitService {
	return &HabitService{
		repo:        repo,
		completions: completions,
		settings:    settings,
		worker:      worker,
		now:         time.Now,
	}
}

// WithClock replaces the wall clock used to resolve "today".
func (s *HabitService) WithClock(now func() time.Time) *HabitService {
	s.now = now
	return s
}

type CreateHabitInput struct {
	UserID          int64
	Name            string
	Emoji           string
	Description     string
	StartDate       domain.Date
	TargetDate      *domain.Date
	Repeat          domain.RepeatConfig
	ReminderEnabled bool
	ReminderTime    string
}

func (s *HabitService) Create(ctx context.Context, input CreateHabitInput) (*domain.Habit, error) {
	reminderTime := input.ReminderTime
	if reminderTime == "" {
		settings, err := s.settings.EnsureUserSettings(ctx, input.UserID)
		if err != nil {
			return nil, err
		}
		reminderTime = settings.DefaultReminderTime
	}

	habit, err := domain.NewHabit(
		input.UserID,
		input.Name,
		input.Emoji,
		input.Description,
		input.StartDate,
		input.TargetDate,
		input.Repeat.Decode(input.StartDate),
		input.ReminderEnabled,
		reminderTime,
	)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, habit); err != nil {
		return nil, err
	}

	return habit, nil
}

// GetHabit returns nil without error when the habit does not exist for userID.
func (s *HabitService) GetHabit(ctx context.Context, id string, userID int64) (*domain.Habit, error) {
	habit, err := s.repo.GetByID(ctx, id, userID)
	if errors.Is(err, domain.ErrHabitNotFound) {
		return nil, nil
	}
	return habit, err
}

func (s *HabitService) ListHabits(ctx context.Context, userID int64, includeArchived bool) ([]*domain.Habit, error) {
	return s.repo.ListByUserID(ctx, userID, includeArchived)
}

func (s *HabitService) ListActiveHabits(ctx context.Context, userID int64) ([]*domain.Habit, error) {
	return s.repo.ListByUserID(ctx, userID, false)
}

// ListDueHabits returns the active habits due on day ordered by reminder time, then name.
func (s *HabitService) ListDueHabits(ctx context.Context, userID int64, day domain.Date) ([]*domain.Habit, error) {
	habits, err := s.ListActiveHabits(ctx, userID)
	if err != nil {
		return nil, err
	}

	due := make([]*domain.Habit, 0, len(habits))
	for _, h := range habits {
		if recurrence.IsDue(recurrence.ScheduleOf(h), day) {
			due = append(due, h)
		}
	}

	fallback := s.settings.DefaultReminderTime()
	reminderAt := func(h *domain.Habit) string {
		if h.Reminder.Time == "" {
			return fallback
		}
		return h.Reminder.Time
	}
	sort.SliceStable(due, func(i, j int) bool {
		ti, tj := reminderAt(due[i]), reminderAt(due[j])
		if ti != tj {
			return ti < tj
		}
		return due[i].Name < due[j].Name
	})

	return due, nil
}

// MarkCompleted records a completion on day. A second mark for the same day
// is a no-op that returns false and the unchanged habit. Unknown, foreign
// and archived habits return false and a nil habit.
//
// When the streak write fails after the record was stored, a full repair is
// scheduled before the error is returned, and a retry repairs a cache that
// still predates the stored record.
func (s *HabitService) MarkCompleted(ctx context.Context, id string, userID int64, day domain.Date) (bool, *domain.Habit, error) {
	habit, err := s.GetHabit(ctx, id, userID)
	if err != nil || habit == nil {
		return false, nil, err
	}
	if habit.Archived {
		return false, nil, nil
	}

	inserted, err := s.completions.Insert(ctx, domain.NewCompletion(habit.ID, userID, day))
	if err != nil {
		return false, nil, fmt.Errorf("habit service: failed to record completion: %w", err)
	}
	if !inserted {
		metrics.CompletionsRecorded.WithLabelValues("duplicate").Inc()
		if last := habit.LastCompletedOn; last != nil && !last.Before(day) {
			return false, habit, nil
		}
		repaired, err := s.repairNow(ctx, habit.ID, userID, day)
		if err != nil {
			return false, nil, fmt.Errorf("habit service: failed to repair streak: %w", err)
		}
		return false, repaired, nil
	}
	metrics.CompletionsRecorded.WithLabelValues("new").Inc()

	if err := s.updateStreakAfterMark(ctx, habit, day); err != nil {
		if repairErr := s.scheduleRepair(ctx, habit.ID, userID, day); repairErr != nil {
			err = errors.Join(err, repairErr)
		}
		return false, nil, err
	}

	return true, habit, nil
}

func (s *HabitService) updateStreakAfterMark(ctx context.Context, habit *domain.Habit, day domain.Date) error {
	dates, err := s.completions.ListDates(ctx, habit.ID, day, recurrence.LookbackLimit)
	if err != nil {
		return fmt.Errorf("habit service: failed to load completions: %w", err)
	}

	streak := recurrence.CalculateStreak(recurrence.ScheduleOf(habit), day, recurrence.NewDateSet(dates))
	habit.RecordCompletion(day, streak)

	if err := s.repo.UpdateStreak(ctx, habit.ID, habit.StreakState()); err != nil {
		return fmt.Errorf("habit service: failed to update streak: %w", err)
	}
	return nil
}

// repairAsOf is the user's today, or day when that lies ahead of it.
func (s *HabitService) repairAsOf(ctx context.Context, userID int64, day domain.Date) (domain.Date, error) {
	today, err := s.settings.Today(ctx, userID, s.now())
	if err != nil {
		return domain.Date{}, err
	}
	if day.After(today) {
		return day, nil
	}
	return today, nil
}

func (s *HabitService) repairNow(ctx context.Context, habitID string, userID int64, day domain.Date) (*domain.Habit, error) {
	asOf, err := s.repairAsOf(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	return workers.RepairStreak(ctx, s.repo, s.completions, habitID, userID, asOf)
}

// scheduleRepair hands the habit to the background worker, or repairs it
// inline when there is no worker or the worker refuses the job.
func (s *HabitService) scheduleRepair(ctx context.Context, habitID string, userID int64, day domain.Date) error {
	asOf, err := s.repairAsOf(ctx, userID, day)
	if err != nil {
		return err
	}

	job := workers.StreakJob{HabitID: habitID, UserID: userID, AsOf: asOf}
	if s.worker != nil && s.worker.Enqueue(job) {
		return nil
	}
	_, err = workers.RepairStreak(ctx, s.repo, s.completions, job.HabitID, job.UserID, job.AsOf)
	return err
}

// UnmarkCompleted removes the completion on day and schedules a full streak
// repair. It reports whether a record was removed.
func (s *HabitService) UnmarkCompleted(ctx context.Context, id string, userID int64, day domain.Date) (bool, error) {
	habit, err := s.GetHabit(ctx, id, userID)
	if err != nil || habit == nil {
		return false, err
	}

	removed, err := s.completions.Delete(ctx, habit.ID, userID, day)
	if err != nil || !removed {
		return false, err
	}

	// A completion closes the reminder gate for its day; reopen it.
	if sent := habit.Reminder.LastSentDate; sent != nil && sent.Equal(day) {
		if err := s.repo.SetReminderSentDate(ctx, habit.ID, nil); err != nil {
			return true, err
		}
	}

	today, err := s.settings.Today(ctx, userID, s.now())
	if err != nil {
		return true, err
	}
	if err := s.scheduleRepair(ctx, habit.ID, userID, today); err != nil {
		return true, err
	}
	return true, nil
}

// RecomputeStreak rebuilds the cached streak fields from the stored history.
func (s *HabitService) RecomputeStreak(ctx context.Context, id string, userID int64) (*domain.Habit, error) {
	today, err := s.settings.Today(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}

	habit, err := workers.RepairStreak(ctx, s.repo, s.completions, id, userID, today)
	if errors.Is(err, domain.ErrHabitNotFound) {
		return nil, nil
	}
	return habit, err
}

// RecomputeUserStreaks repairs every habit of a user, archived ones included.
func (s *HabitService) RecomputeUserStreaks(ctx context.Context, userID int64) (int, error) {
	habits, err := s.repo.ListByUserID(ctx, userID, true)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, h := range habits {
		if _, err := s.RecomputeStreak(ctx, h.ID, userID); err != nil {
			return repaired, fmt.Errorf("habit %s: %w", h.ID, err)
		}
		repaired++
	}
	return repaired, nil
}

func (s *HabitService) ArchiveHabit(ctx context.Context, id string, userID int64) (bool, error) {
	habit, err := s.GetHabit(ctx, id, userID)
	if err != nil || habit == nil || habit.Archived {
		return false, err
	}

	habit.Archive()
	if err := s.repo.Update(ctx, habit); err != nil {
		return false, err
	}
	return true, nil
}

func (s *HabitService) RestoreHabit(ctx context.Context, id string, userID int64) (bool, error) {
	habit, err := s.GetHabit(ctx, id, userID)
	if err != nil || habit == nil || !habit.Archived {
		return false, err
	}

	habit.Restore()
	if err := s.repo.Update(ctx, habit); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteHabitPermanently removes the habit and all of its completions.
func (s *HabitService) DeleteHabitPermanently(ctx context.Context, id string, userID int64) (bool, error) {
	habit, err := s.GetHabit(ctx, id, userID)
	if err != nil || habit == nil {
		return false, err
	}

	if err := s.completions.DeleteByHabit(ctx, habit.ID, userID); err != nil {
		return false, fmt.Errorf("habit service: failed to delete completions: %w", err)
	}
	if err := s.repo.Delete(ctx, habit.ID, userID); err != nil {
		if errors.Is(err, domain.ErrHabitNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// UpdateReminder applies a partial reminder change. It returns nil without
// error when the habit does not exist for userID.
func (s *HabitService) UpdateReminder(ctx context.Context, id string, userID int64, enabled *bool, reminderTime *string) (*domain.Habit, error) {
	habit, err := s.GetHabit(ctx, id, userID)
	if err != nil || habit == nil {
		return nil, err
	}

	changed, err := habit.ConfigureReminder(enabled, reminderTime)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := s.repo.Update(ctx, habit); err != nil {
			return nil, err
		}
	}
	return habit, nil
}

// UpdateFields edits name, emoji and description. It reports whether the
// habit exists for userID.
func (s *HabitService) UpdateFields(ctx context.Context, id string, userID int64, update domain.FieldsUpdate) (bool, error) {
	if update.Empty() {
		return false, nil
	}

	habit, err := s.GetHabit(ctx, id, userID)
	if err != nil || habit == nil {
		return false, err
	}

	changed, err := habit.ApplyFields(update)
	if err != nil {
		return false, err
	}
	if changed {
		if err := s.repo.Update(ctx, habit); err != nil {
			return false, err
		}
	}
	return true, nil
}
