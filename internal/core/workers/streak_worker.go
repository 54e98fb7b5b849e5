package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/domain"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/recurrence"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/metrics"
)

type HabitRepository interface {
	GetByID(ctx context.Context, id string, userID int64) (*domain.Habit, error)
	UpdateStreak(ctx context.Context, id string, state domain.StreakState) error
}

type CompletionRepository interface {
	ListDates(ctx context.Context, habitID string, upTo domain.Date, limit int) ([]domain.Date, error)
}

// drainTimeout bounds the repairs still queued when the worker stops.
const drainTimeout = 5 * time.Second

type StreakJob struct {
	HabitID string
	UserID  int64
	AsOf    domain.Date
}

// StreakRepairWorker recomputes cached streaks from the full completion
// history in the background.
type StreakRepairWorker struct {
	habitRepo      HabitRepository
	completionRepo CompletionRepository
	logger         *zap.Logger
	jobs           chan StreakJob
	done           chan struct{}
	startOnce      sync.Once

	mu      sync.Mutex
	stopped bool
}

func NewStreakRepairWorker(hRepo HabitRepository, cRepo CompletionRepository, logger *zap.Logger) *StreakRepairWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreakRepairWorker{
		habitRepo:      hRepo,
		completionRepo: cRepo,
		logger:         logger.Named("streak_repair"),
		jobs:           make(chan StreakJob, 100),
		done:           make(chan struct{}),
	}
}

// Start runs the worker until ctx is cancelled. Jobs still queued at that
// point are repaired before it exits. Wait blocks until it has exited.
func (w *StreakRepairWorker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		go w.run(ctx)
	})
}

func (w *StreakRepairWorker) run(ctx context.Context) {
	defer close(w.done)
	w.logger.Info("streak repair worker started")
	for {
		select {
		case job := <-w.jobs:
			w.processJob(ctx, job)
		case <-ctx.Done():
			w.logger.Info("streak repair worker shutting down")
			w.drain(ctx)
			return
		}
	}
}

// drain closes the queue to new jobs and repairs what is left in it. The
// parent context is already cancelled, so the store calls get their own deadline.
func (w *StreakRepairWorker) drain(parent context.Context) {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), drainTimeout)
	defer cancel()

	for {
		select {
		case job := <-w.jobs:
			w.processJob(ctx, job)
		default:
			return
		}
	}
}

func (w *StreakRepairWorker) Wait() {
	<-w.done
}

// Enqueue schedules a repair and reports whether it was accepted. Jobs are
// refused once the worker has stopped, and dropped when the queue is full;
// callers then repair inline.
func (w *StreakRepairWorker) Enqueue(job StreakJob) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return false
	}

	select {
	case w.jobs <- job:
		return true
	default:
		metrics.StreakRepairs.WithLabelValues("dropped").Inc()
		w.logger.Warn("streak repair queue full, dropping job", zap.String("habit_id", job.HabitID))
		return false
	}
}

func (w *StreakRepairWorker) processJob(ctx context.Context, job StreakJob) {
	habit, err := RepairStreak(ctx, w.habitRepo, w.completionRepo, job.HabitID, job.UserID, job.AsOf)
	if err != nil {
		metrics.StreakRepairs.WithLabelValues("error").Inc()
		w.logger.Error("streak repair failed",
			zap.String("habit_id", job.HabitID),
			zap.Int64("user_id", job.UserID),
			zap.Error(err),
		)
		return
	}
	metrics.StreakRepairs.WithLabelValues("ok").Inc()
	w.logger.Debug("streak repaired",
		zap.String("habit_id", habit.ID),
		zap.Int("current", habit.CurrentStreak),
		zap.Int("best", habit.BestStreak),
	)
}

// RepairStreak recomputes all cached streak fields of one habit from its
// completions on or before asOf and writes them back when they changed.
func RepairStreak(ctx context.Context, habits HabitRepository, completions CompletionRepository, habitID string, userID int64, asOf domain.Date) (*domain.Habit, error) {
	habit, err := habits.GetByID(ctx, habitID, userID)
	if err != nil {
		return nil, err
	}

	dates, err := completions.ListDates(ctx, habitID, asOf, recurrence.LookbackLimit)
	if err != nil {
		return nil, fmt.Errorf("list completion dates: %w", err)
	}

	summary := recurrence.Summarize(recurrence.ScheduleOf(habit), dates)
	if !habit.ReplaceStreak(summary.Current, summary.Best, summary.LastCompletedOn) {
		return habit, nil
	}

	if err := habits.UpdateStreak(ctx, habit.ID, habit.StreakState()); err != nil {
		return nil, fmt.Errorf("update streak: %w", err)
	}
	return habit, nil
}
