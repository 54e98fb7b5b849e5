package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/domain"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/recurrence"
)

var (
	ErrUnknownPeriod = errors.New("unknown stats period (day, week, month, year, all)")
	ErrInvalidRange  = errors.New("stats range end is before start")
)

// AllTimeDays is how far back the "all" period reaches.
const AllTimeDays = 5 * 365

type StatsService struct {
	habitRepo      domain.HabitRepository
	completionRepo domain.CompletionRepository
}

func NewStatsService(habitRepo domain.HabitRepository, completionRepo domain.CompletionRepository) *StatsService {
	return &StatsService{
		habitRepo:      habitRepo,
		completionRepo: completionRepo,
	}
}

// ResolvePeriod maps a period name to an inclusive date range ending today.
func ResolvePeriod(period string, today domain.Date) (domain.Date, domain.Date, error) {
	switch period {
	case "day":
		return today, today, nil
	case "week":
		return today.AddDays(-6), today, nil
	case "month":
		return today.FirstOfMonth(), today, nil
	case "year":
		return domain.NewDate(today.Year(), 1, 1), today, nil
	case "all":
		return today.AddDays(-AllTimeDays), today, nil
	default:
		return domain.Date{}, domain.Date{}, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}
}

// StatsForPeriod aggregates the user's completions in [start, end]. Active
// habits are always listed; archived ones only when they have completions in
// the range.
func (s *StatsService) StatsForPeriod(ctx context.Context, userID int64, start, end domain.Date) (*domain.PeriodStats, error) {
	if end.Before(start) {
		return nil, ErrInvalidRange
	}

	habits, err := s.habitRepo.ListByUserID(ctx, userID, true)
	if err != nil {
		return nil, err
	}

	completions, err := s.completionRepo.ListByUserAndRange(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(habits))
	for _, h := range habits {
		known[h.ID] = true
	}

	perHabit := make(map[string]int)
	perDay := make(map[string]int)
	for _, c := range completions {
		if !known[c.HabitID] {
			continue
		}
		perHabit[c.HabitID]++
		perDay[c.Date.String()]++
	}

	stats := &domain.PeriodStats{
		UserID:     userID,
		StartDate:  start,
		EndDate:    end,
		HabitStats: make([]domain.HabitStat, 0, len(habits)),
	}

	for _, h := range habits {
		count := perHabit[h.ID]
		if h.Archived && count == 0 {
			continue
		}

		from := start
		if from.Before(h.StartDate) {
			from = h.StartDate
		}

		stats.HabitStats = append(stats.HabitStats, domain.HabitStat{
			HabitID:       h.ID,
			HabitName:     h.Name,
			Emoji:         h.Emoji,
			Completed:     count,
			DueDays:       recurrence.CountDue(recurrence.ScheduleOf(h), from, end),
			CurrentStreak: h.CurrentStreak,
			BestStreak:    h.BestStreak,
		})
		stats.TotalCompleted += count
	}

	sort.SliceStable(stats.HabitStats, func(i, j int) bool {
		return stats.HabitStats[i].Completed > stats.HabitStats[j].Completed
	})

	for key, count := range perDay {
		day := domain.MustParseDate(key)
		best := stats.BestDay
		if best == nil || count > best.Count || (count == best.Count && day.Before(best.Date)) {
			stats.BestDay = &domain.DayCount{Date: day, Count: count}
		}
	}

	return stats, nil
}
