// Package recurrence decides when a habit is due and walks its schedule
// backwards to compute streaks. Everything here is pure and safe for
// concurrent use.
package recurrence

import (
	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/domain"
)

// Schedule is the part of a habit the engine looks at.
type Schedule struct {
	Start  domain.Date
	Target *domain.Date
	Rule   domain.Repeat
}

func ScheduleOf(h *domain.Habit) Schedule {
	return Schedule{
		Start:  h.StartDate,
		Target: h.TargetDate,
		Rule:   h.Rule(),
	}
}

// InRange reports whether day lies within [Start, Target].
func (s Schedule) InRange(day domain.Date) bool {
	if s.Start.IsZero() || day.Before(s.Start) {
		return false
	}
	if s.Target != nil && !s.Target.IsZero() && day.After(*s.Target) {
		return false
	}
	return true
}

// IsDue reports whether the rule requires action on day.
func IsDue(s Schedule, day domain.Date) bool {
	if !s.InRange(day) {
		return false
	}

	switch rule := s.Rule.(type) {
	case domain.Daily:
		return true
	case domain.Interval:
		return day.DaysSince(s.Start)%rule.EveryDays() == 0
	case domain.Weekly:
		return day.Weekday() == rule.Weekday
	case domain.Weekdays:
		return rule.Contains(day.Weekday())
	case domain.Monthly:
		return day.Day() == min(rule.Day, day.DaysInMonth())
	default:
		// Unknown rules fail open.
		return true
	}
}

// PreviousDueDate returns the due date preceding from, or false when there is
// none on or after the start date.
//
// Daily, Interval and Weekly step back by their period; if the candidate is not
// due they keep stepping from it. Monthly gives up when its candidate is not due.
// Weekdays scans day by day.
func PreviousDueDate(s Schedule, from domain.Date) (domain.Date, bool) {
	for {
		if s.Start.IsZero() || !from.After(s.Start) {
			return domain.Date{}, false
		}

		var candidate domain.Date
		retry := false

		switch rule := s.Rule.(type) {
		case domain.Daily:
			candidate = from.AddDays(-1)
			retry = true
		case domain.Interval:
			candidate = from.AddDays(-rule.EveryDays())
			retry = true
		case domain.Weekly:
			candidate = from.AddDays(-7)
			retry = true
		case domain.Weekdays:
			candidate = from.AddDays(-1)
			for !candidate.Before(s.Start) {
				if rule.Contains(candidate.Weekday()) && IsDue(s, candidate) {
					break
				}
				candidate = candidate.AddDays(-1)
			}
		case domain.Monthly:
			prevMonthEnd := from.FirstOfMonth().AddDays(-1)
			day := min(rule.Day, prevMonthEnd.DaysInMonth())
			candidate = domain.NewDate(prevMonthEnd.Year(), prevMonthEnd.Month(), day)
		default:
			candidate = from.AddDays(-1)
		}

		if candidate.Before(s.Start) {
			return domain.Date{}, false
		}

		if IsDue(s, candidate) {
			return candidate, true
		}
		if !retry {
			return domain.Date{}, false
		}
		from = candidate
	}
}

// CountDue counts due days in [from, to].
func CountDue(s Schedule, from, to domain.Date) int {
	count := 0
	for day := from; !day.After(to); day = day.AddDays(1) {
		if IsDue(s, day) {
			count++
		}
	}
	return count
}
