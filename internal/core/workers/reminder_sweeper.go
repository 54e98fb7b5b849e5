package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/domain"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/recurrence"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/metrics"
)

const DefaultReminderInterval = 60 * time.Second

// MinReminderInterval is the shortest polling period the sweeper accepts.
const MinReminderInterval = 10 * time.Second

var ErrSweeperRunning = errors.New("reminder sweeper already running")

type ReminderHabitRepository interface {
	ListReminderUserIDs(ctx context.Context) ([]int64, error)
	ListByUserID(ctx context.Context, userID int64, includeArchived bool) ([]*domain.Habit, error)
	SetReminderSentDate(ctx context.Context, id string, day *domain.Date) error
}

type CompletionChecker interface {
	Exists(ctx context.Context, habitID string, userID int64, day domain.Date) (bool, error)
}

type SettingsProvider interface {
	GetUserSettings(ctx context.Context, userID int64) (*domain.UserSettings, error)
}

type ReminderSweeperConfig struct {
	Interval            time.Duration
	Location            *time.Location
	DefaultReminderTime string
	Now                 func() time.Time
}

// SweepReport summarises one tick.
type SweepReport struct {
	Users    int `json:"users"`
	Sent     int `json:"sent"`
	Failures int `json:"failures"`
}

// ReminderSweeper periodically sends at most one reminder per habit per due
// day. Ticks never overlap: the loop runs them one after another.
type ReminderSweeper struct {
	habits      ReminderHabitRepository
	completions CompletionChecker
	settings    SettingsProvider
	notifier    domain.Notifier
	logger      *zap.Logger

	interval     time.Duration
	location     *time.Location
	reminderTime string
	now          func() time.Time

	mu                  sync.Mutex
	cancel              context.CancelFunc
	done                chan struct{}
	consecutiveFailures int
}

func NewReminderSweeper(
	habits ReminderHabitRepository,
	completions CompletionChecker,
	settings SettingsProvider,
	notifier domain.Notifier,
	cfg ReminderSweeperConfig,
	logger *zap.Logger,
) *ReminderSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultReminderInterval
	}
	if cfg.Interval < MinReminderInterval {
		cfg.Interval = MinReminderInterval
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DefaultReminderTime == "" {
		cfg.DefaultReminderTime = domain.DefaultReminderTime
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &ReminderSweeper{
		habits:       habits,
		completions:  completions,
		settings:     settings,
		notifier:     notifier,
		logger:       logger.Named("reminders"),
		interval:     cfg.Interval,
		location:     cfg.Location,
		reminderTime: cfg.DefaultReminderTime,
		now:          cfg.Now,
	}
}

func (s *ReminderSweeper) Interval() time.Duration {
	return s.interval
}

// Start launches the sweep loop. The first tick runs immediately.
func (s *ReminderSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return ErrSweeperRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(loopCtx, s.done)
	s.logger.Info("reminder sweeper started", zap.Duration("interval", s.interval))
	return nil
}

// Stop cancels the loop and waits for it to exit, or for ctx to expire.
// A tick in progress is abandoned between habits.
func (s *ReminderSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		s.logger.Info("reminder sweeper stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("reminder sweeper stop: %w", ctx.Err())
	}
}

func (s *ReminderSweeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("reminder tick failed", zap.Error(err))
		}
		timer.Reset(s.interval)
	}
}

// Tick runs one sweep over every user with reminder-enabled habits.
// It returns an error only when the user list itself cannot be loaded.
func (s *ReminderSweeper) Tick(ctx context.Context) (SweepReport, error) {
	start := time.Now()
	defer func() {
		metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	var report SweepReport

	userIDs, err := s.habits.ListReminderUserIDs(ctx)
	if err != nil {
		s.recordStoreFailure(err)
		return report, fmt.Errorf("list reminder users: %w", err)
	}
	s.recordStoreSuccess()

	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Users++

		sent, failures := s.sweepUser(ctx, userID)
		report.Sent += sent
		report.Failures += failures
	}

	return report, nil
}

func (s *ReminderSweeper) recordStoreFailure(err error) {
	s.mu.Lock()
	s.consecutiveFailures++
	n := s.consecutiveFailures
	s.mu.Unlock()

	metrics.SweepFailures.WithLabelValues("store").Inc()
	s.logger.Warn("reminder sweep aborted: store unavailable",
		zap.Int("consecutive_failures", n),
		zap.Error(err),
	)
}

func (s *ReminderSweeper) recordStoreSuccess() {
	s.mu.Lock()
	n := s.consecutiveFailures
	s.consecutiveFailures = 0
	s.mu.Unlock()

	if n > 0 {
		s.logger.Info("reminder sweep store recovered", zap.Int("after_failures", n))
	}
}

func (s *ReminderSweeper) userClock(ctx context.Context, userID int64) (domain.Date, string) {
	loc := s.location

	settings, err := s.settings.GetUserSettings(ctx, userID)
	switch {
	case err != nil:
		s.logger.Warn("user settings unavailable, using default timezone",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
	default:
		if l, err := domain.LoadLocation(settings.Timezone); err == nil {
			loc = l
		} else {
			s.logger.Warn("invalid user timezone, using default",
				zap.Int64("user_id", userID),
				zap.String("timezone", settings.Timezone),
			)
		}
	}

	local := s.now().In(loc)
	return domain.DateOf(local), local.Format("15:04")
}

func (s *ReminderSweeper) sweepUser(ctx context.Context, userID int64) (sent, failures int) {
	today, clock := s.userClock(ctx, userID)

	habits, err := s.habits.ListByUserID(ctx, userID, false)
	if err != nil {
		metrics.SweepFailures.WithLabelValues("user").Inc()
		s.logger.Error("reminder sweep: failed to list habits",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return 0, 1
	}

	for _, habit := range habits {
		if ctx.Err() != nil {
			return sent, failures
		}

		ok, err := s.remind(ctx, habit, today, clock)
		if ok {
			sent++
		}
		if err != nil {
			failures++
			s.logger.Error("reminder sweep: habit failed",
				zap.Int64("user_id", userID),
				zap.String("habit_id", habit.ID),
				zap.Error(err),
			)
		}
	}
	return sent, failures
}

func (s *ReminderSweeper) remind(ctx context.Context, habit *domain.Habit, today domain.Date, clock string) (bool, error) {
	if habit.Archived || !habit.Reminder.Enabled {
		return false, nil
	}

	at := habit.Reminder.Time
	if at == "" {
		at = s.reminderTime
	}
	if at > clock {
		return false, nil
	}
	if habit.Reminder.LastSentDate != nil && habit.Reminder.LastSentDate.Equal(today) {
		return false, nil
	}
	if !recurrence.IsDue(recurrence.ScheduleOf(habit), today) {
		return false, nil
	}

	done, err := s.completions.Exists(ctx, habit.ID, habit.UserID, today)
	if err != nil {
		metrics.SweepFailures.WithLabelValues("habit").Inc()
		return false, fmt.Errorf("check completion: %w", err)
	}
	if done {
		return false, nil
	}

	if err := s.notifier.Send(ctx, habit.UserID, RenderReminder(habit, today)); err != nil {
		metrics.SweepFailures.WithLabelValues("notify").Inc()
		return false, fmt.Errorf("send reminder: %w", err)
	}
	metrics.RemindersSent.Inc()

	if err := s.habits.SetReminderSentDate(ctx, habit.ID, domain.DatePtr(today)); err != nil {
		metrics.SweepFailures.WithLabelValues("habit").Inc()
		return true, fmt.Errorf("set reminder gate: %w", err)
	}
	habit.Reminder.LastSentDate = domain.DatePtr(today)

	s.logger.Info("reminder sent",
		zap.Int64("user_id", habit.UserID),
		zap.String("habit_id", habit.ID),
	)
	return true, nil
}

// RenderReminder formats the reminder message for habit on day.
func RenderReminder(habit *domain.Habit, day domain.Date) string {
	emoji := habit.Emoji
	if emoji == "" {
		emoji = domain.DefaultEmoji
	}
	return fmt.Sprintf("%s *Habit reminder*\nToday %s is the time to complete «%s»!",
		emoji, day.Format("02.01.2006"), habit.Name)
}
