package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_Basics(t *testing.T) {
	d := domain.MustParseDate("2024-01-01")

	assert.Equal(t, "2024-01-01", d.String())
	assert.Equal(t, 0, d.Weekday(), "2024-01-01 is a Monday")
	assert.Equal(t, 6, d.AddDays(6).Weekday())
	assert.Equal(t, 31, d.DaysInMonth())
	assert.Equal(t, 29, domain.NewDate(2024, time.February, 10).DaysInMonth())
	assert.Equal(t, 28, domain.NewDate(2023, time.February, 10).DaysInMonth())
	assert.Equal(t, 8, d.AddDays(8).DaysSince(d))
	assert.Equal(t, -3, d.AddDays(-3).DaysSince(d))
}

func TestDate_DaysSinceDistantDates(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want int
	}{
		{"Same day", "2024-01-01", "2024-01-01", 0},
		{"Before the epoch", "1969-12-31", "1970-01-02", 2},
		{"Three centuries", "1700-01-01", "2024-01-01", 118338},
		{"Backwards across centuries", "2024-01-01", "1700-01-01", -118338},
		{"Far future", "2024-01-01", "2500-01-01", 173856},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := domain.MustParseDate(tt.from), domain.MustParseDate(tt.to)
			assert.Equal(t, tt.want, to.DaysSince(from))
			assert.Equal(t, to, from.AddDays(tt.want))
		})
	}
}

func TestDate_DaysSinceAcrossDST(t *testing.T) {
	a := domain.NewDate(2024, time.March, 1)
	b := domain.NewDate(2024, time.April, 1)
	assert.Equal(t, 31, b.DaysSince(a))
}

func TestDate_Today(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Almaty")
	require.NoError(t, err)

	now := time.Date(2024, time.January, 1, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-01-02", domain.Today(now, loc).String())
	assert.Equal(t, "2024-01-01", domain.Today(now, nil).String())
}

func TestDate_ParseErrors(t *testing.T) {
	for _, raw := range []string{"", "2024-13-01", "01.02.2024", "2024-02-30"} {
		_, err := domain.ParseDate(raw)
		assert.ErrorIs(t, err, domain.ErrInvalidDate, raw)
	}
}

func TestDate_JSON(t *testing.T) {
	type wrapper struct {
		Day  domain.Date  `json:"day"`
		Opt  *domain.Date `json:"opt"`
		Zero domain.Date  `json:"zero"`
	}

	raw, err := json.Marshal(wrapper{Day: domain.MustParseDate("2024-02-29")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"day":"2024-02-29","opt":null,"zero":null}`, string(raw))

	var back wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"day":"2024-03-31","opt":"2024-04-01","zero":null}`), &back))
	assert.Equal(t, domain.NewDate(2024, time.March, 31), back.Day)
	assert.Equal(t, domain.NewDate(2024, time.April, 1), *back.Opt)
	assert.True(t, back.Zero.IsZero())
}

func TestDate_Scan(t *testing.T) {
	var d domain.Date

	require.NoError(t, d.Scan(time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-05-06", d.String())

	require.NoError(t, d.Scan([]byte("2024-05-07")))
	assert.Equal(t, "2024-05-07", d.String())

	require.NoError(t, d.Scan("2024-05-08T00:00:00Z"))
	assert.Equal(t, "2024-05-08", d.String())

	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())

	assert.Error(t, d.Scan(42))

	v, err := domain.MustParseDate("2024-05-09").Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-05-09", v)
}
