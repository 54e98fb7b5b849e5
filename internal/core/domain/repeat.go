package domain

import (
	"errors"
	"sort"
)

var (
	ErrInvalidRepeatMode = errors.New("invalid repeat mode (must be daily, weekdays, weekly, monthly or interval)")
	ErrInvalidWeekdays   = errors.New("invalid weekdays (must be 0-6)")
	ErrInvalidWeekday    = errors.New("invalid weekly anchor (must be 0-6)")
	ErrInvalidMonthDay   = errors.New("invalid day of month (must be 1-31)")
	ErrInvalidInterval   = errors.New("interval must be at least 1 day")
)

type RepeatMode string

const (
	RepeatDaily    RepeatMode = "daily"
	RepeatWeekdays RepeatMode = "weekdays"
	RepeatWeekly   RepeatMode = "weekly"
	RepeatMonthly  RepeatMode = "monthly"
	RepeatInterval RepeatMode = "interval"
)

// Repeat is the closed set of repetition rules. Only the types in this file
// implement it.
type Repeat interface {
	Mode() RepeatMode
	repeat()
}

type Daily struct{}

// Weekdays is due on every listed weekday (0 = Monday). An empty set means every day.
type Weekdays struct {
	Days []int
}

type Weekly struct {
	Weekday int
}

// Monthly is due on Day of each month, clamped to the month's last day.
type Monthly struct {
	Day int
}

type Interval struct {
	Days int
}

// UnknownRepeat carries a persisted mode this build does not understand.
// It is treated as due every day.
type UnknownRepeat struct {
	Name string
}

func (Daily) Mode() RepeatMode           { return RepeatDaily }
func (Weekdays) Mode() RepeatMode        { return RepeatWeekdays }
func (Weekly) Mode() RepeatMode          { return RepeatWeekly }
func (Monthly) Mode() RepeatMode         { return RepeatMonthly }
func (Interval) Mode() RepeatMode        { return RepeatInterval }
func (u UnknownRepeat) Mode() RepeatMode { return RepeatMode(u.Name) }

func (Daily) repeat()         {}
func (Weekdays) repeat()      {}
func (Weekly) repeat()        {}
func (Monthly) repeat()       {}
func (Interval) repeat()      {}
func (UnknownRepeat) repeat() {}

// Contains reports whether weekday is in the set; the empty set contains every day.
func (w Weekdays) Contains(weekday int) bool {
	if len(w.Days) == 0 {
		return true
	}
	for _, d := range w.Days {
		if d == weekday {
			return true
		}
	}
	return false
}

// EveryDays is the interval length, never below one.
func (i Interval) EveryDays() int {
	if i.Days < 1 {
		return 1
	}
	return i.Days
}

// RepeatConfig is the persisted, flat form of a Repeat.
type RepeatConfig struct {
	Mode         RepeatMode `json:"mode" bson:"mode"`
	Weekdays     []int      `json:"weekdays,omitempty" bson:"weekdays,omitempty"`
	WeekDay      *int       `json:"week_day,omitempty" bson:"week_day,omitempty"`
	MonthDay     *int       `json:"month_day,omitempty" bson:"month_day,omitempty"`
	IntervalDays *int       `json:"interval_days,omitempty" bson:"interval_days,omitempty"`
}

// Decode turns the persisted config into a rule. Missing weekly and monthly
// anchors default to the start date's weekday and day of month.
func (c RepeatConfig) Decode(start Date) Repeat {
	switch c.Mode {
	case "", RepeatDaily:
		return Daily{}
	case RepeatWeekdays:
		return Weekdays{Days: normalizeWeekdays(c.Weekdays)}
	case RepeatWeekly:
		if c.WeekDay == nil {
			return Weekly{Weekday: start.Weekday()}
		}
		return Weekly{Weekday: *c.WeekDay}
	case RepeatMonthly:
		if c.MonthDay == nil || *c.MonthDay == 0 {
			return Monthly{Day: start.Day()}
		}
		return Monthly{Day: *c.MonthDay}
	case RepeatInterval:
		if c.IntervalDays == nil {
			return Interval{Days: 1}
		}
		return Interval{Days: *c.IntervalDays}
	default:
		return UnknownRepeat{Name: string(c.Mode)}
	}
}

func ConfigOf(r Repeat) RepeatConfig {
	switch rule := r.(type) {
	case Daily:
		return RepeatConfig{Mode: RepeatDaily}
	case Weekdays:
		return RepeatConfig{Mode: RepeatWeekdays, Weekdays: normalizeWeekdays(rule.Days)}
	case Weekly:
		day := rule.Weekday
		return RepeatConfig{Mode: RepeatWeekly, WeekDay: &day}
	case Monthly:
		day := rule.Day
		return RepeatConfig{Mode: RepeatMonthly, MonthDay: &day}
	case Interval:
		days := rule.Days
		return RepeatConfig{Mode: RepeatInterval, IntervalDays: &days}
	case UnknownRepeat:
		return RepeatConfig{Mode: RepeatMode(rule.Name)}
	default:
		return RepeatConfig{Mode: RepeatDaily}
	}
}

// ValidateRepeat rejects rules that cannot be stored on a new or edited habit.
func ValidateRepeat(r Repeat) error {
	switch rule := r.(type) {
	case nil:
		return ErrInvalidRepeatMode
	case Daily:
		return nil
	case Weekdays:
		for _, d := range rule.Days {
			if d < 0 || d > 6 {
				return ErrInvalidWeekdays
			}
		}
		return nil
	case Weekly:
		if rule.Weekday < 0 || rule.Weekday > 6 {
			return ErrInvalidWeekday
		}
		return nil
	case Monthly:
		if rule.Day < 1 || rule.Day > 31 {
			return ErrInvalidMonthDay
		}
		return nil
	case Interval:
		if rule.Days < 1 {
			return ErrInvalidInterval
		}
		return nil
	default:
		return ErrInvalidRepeatMode
	}
}

func normalizeWeekdays(days []int) []int {
	if len(days) == 0 {
		return nil
	}

	uniqueMap := make(map[int]bool)
	var uniqueDays []int
	for _, d := range days {
		if !uniqueMap[d] {
			uniqueMap[d] = true
			uniqueDays = append(uniqueDays, d)
		}
	}

	sort.Ints(uniqueDays)
	return uniqueDays
}
