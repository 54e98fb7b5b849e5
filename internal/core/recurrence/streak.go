package recurrence

import (
	"sort"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/domain"
)

// LookbackLimit caps how many completion dates are fetched for one streak
// computation. A streak longer than this is reported as LookbackLimit.
const LookbackLimit = 380

// CompletionLookup answers whether a completion exists on a date.
type CompletionLookup interface {
	Has(day domain.Date) bool
}

// DateSet is a CompletionLookup keyed by the canonical date string.
type DateSet map[string]struct{}

func NewDateSet(dates []domain.Date) DateSet {
	set := make(DateSet, len(dates))
	for _, d := range dates {
		set[d.String()] = struct{}{}
	}
	return set
}

func (s DateSet) Has(day domain.Date) bool {
	_, ok := s[day.String()]
	return ok
}

// CalculateStreak counts consecutive due and completed occurrences ending at
// reference. A completion on a day that is not due stops the walk.
func CalculateStreak(s Schedule, reference domain.Date, lookup CompletionLookup) int {
	streak := 0
	pointer := reference

	for {
		if !lookup.Has(pointer) {
			break
		}
		if !IsDue(s, pointer) {
			break
		}
		streak++

		prev, ok := PreviousDueDate(s, pointer)
		if !ok {
			break
		}
		pointer = prev
	}

	return streak
}

// Summary is the result of a full recompute over a set of completion dates.
type Summary struct {
	Current         int
	Best            int
	LastCompletedOn *domain.Date
}

// Summarize recomputes all streak fields from scratch. Current is the streak
// ending at the most recent completion; Best is the longest run in dates.
func Summarize(s Schedule, dates []domain.Date) Summary {
	if len(dates) == 0 {
		return Summary{}
	}

	sorted := make([]domain.Date, len(dates))
	copy(sorted, dates)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Before(sorted[j])
	})

	set := NewDateSet(sorted)
	runEnding := make(map[string]int, len(sorted))
	best := 0

	for _, day := range sorted {
		key := day.String()
		if _, seen := runEnding[key]; seen {
			continue
		}
		run := 0
		if IsDue(s, day) {
			run = 1
			if prev, ok := PreviousDueDate(s, day); ok && set.Has(prev) {
				run += runEnding[prev.String()]
			}
		}
		runEnding[key] = run
		if run > best {
			best = run
		}
	}

	last := sorted[len(sorted)-1]
	return Summary{
		Current:         runEnding[last.String()],
		Best:            best,
		LastCompletedOn: &last,
	}
}
