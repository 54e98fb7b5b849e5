package domain_test

import (
	"testing"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestRepeatConfig_Decode(t *testing.T) {
	start := domain.MustParseDate("2024-01-17") // Wednesday

	tests := []struct {
		name string
		cfg  domain.RepeatConfig
		want domain.Repeat
	}{
		{"Empty mode is daily", domain.RepeatConfig{}, domain.Daily{}},
		{"Daily", domain.RepeatConfig{Mode: domain.RepeatDaily}, domain.Daily{}},
		{"Weekdays normalized", domain.RepeatConfig{Mode: domain.RepeatWeekdays, Weekdays: []int{4, 0, 4}}, domain.Weekdays{Days: []int{0, 4}}},
		{"Weekdays empty", domain.RepeatConfig{Mode: domain.RepeatWeekdays}, domain.Weekdays{}},
		{"Weekly anchor", domain.RepeatConfig{Mode: domain.RepeatWeekly, WeekDay: ptr(5)}, domain.Weekly{Weekday: 5}},
		{"Weekly defaults to start weekday", domain.RepeatConfig{Mode: domain.RepeatWeekly}, domain.Weekly{Weekday: 2}},
		{"Monthly day", domain.RepeatConfig{Mode: domain.RepeatMonthly, MonthDay: ptr(31)}, domain.Monthly{Day: 31}},
		{"Monthly defaults to start day", domain.RepeatConfig{Mode: domain.RepeatMonthly}, domain.Monthly{Day: 17}},
		{"Interval", domain.RepeatConfig{Mode: domain.RepeatInterval, IntervalDays: ptr(3)}, domain.Interval{Days: 3}},
		{"Interval missing days", domain.RepeatConfig{Mode: domain.RepeatInterval}, domain.Interval{Days: 1}},
		{"Unknown mode", domain.RepeatConfig{Mode: "lunar"}, domain.UnknownRepeat{Name: "lunar"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Decode(start))
		})
	}
}

func TestConfigOf_RoundTrip(t *testing.T) {
	start := domain.MustParseDate("2024-01-01")

	rules := []domain.Repeat{
		domain.Daily{},
		domain.Weekdays{Days: []int{1, 3}},
		domain.Weekly{Weekday: 6},
		domain.Monthly{Day: 30},
		domain.Interval{Days: 10},
	}

	for _, rule := range rules {
		cfg := domain.ConfigOf(rule)
		assert.Equal(t, rule.Mode(), cfg.Mode)
		assert.Equal(t, rule, cfg.Decode(start))
	}
}

func TestInterval_EveryDays(t *testing.T) {
	assert.Equal(t, 1, domain.Interval{Days: 0}.EveryDays())
	assert.Equal(t, 1, domain.Interval{Days: -4}.EveryDays())
	assert.Equal(t, 5, domain.Interval{Days: 5}.EveryDays())
}

func TestWeekdays_Contains(t *testing.T) {
	assert.True(t, domain.Weekdays{}.Contains(3), "empty set means every day")
	assert.True(t, domain.Weekdays{Days: []int{0, 2}}.Contains(2))
	assert.False(t, domain.Weekdays{Days: []int{0, 2}}.Contains(1))
}

func TestValidateRepeat(t *testing.T) {
	assert.NoError(t, domain.ValidateRepeat(domain.Weekdays{}))
	assert.NoError(t, domain.ValidateRepeat(domain.Monthly{Day: 31}))
	assert.ErrorIs(t, domain.ValidateRepeat(domain.UnknownRepeat{Name: "x"}), domain.ErrInvalidRepeatMode)
	assert.ErrorIs(t, domain.ValidateRepeat(domain.Monthly{Day: 0}), domain.ErrInvalidMonthDay)
	assert.ErrorIs(t, domain.ValidateRepeat(domain.Interval{Days: -1}), domain.ErrInvalidInterval)
}
