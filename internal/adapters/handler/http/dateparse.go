package http

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/domain"
)

var ErrUnrecognizedDate = errors.New("unrecognized date (use today, tomorrow, yesterday, DD.MM, DD.MM.YYYY or YYYY-MM-DD)")

var dottedDate = regexp.MustCompile(`^(\d{2})\.(\d{2})(?:\.(\d{4}))?$`)

// ParseUserDate resolves the small set of date forms chat users type,
// relative to the user's today. A DD.MM date already behind today rolls to
// next year, clamped to the month's last day.
func ParseUserDate(raw string, today domain.Date) (domain.Date, error) {
	text := strings.ToLower(strings.TrimSpace(raw))
	switch text {
	case "":
		return domain.Date{}, ErrUnrecognizedDate
	case "today", "сегодня":
		return today, nil
	case "tomorrow", "завтра":
		return today.AddDays(1), nil
	case "yesterday", "вчера":
		return today.AddDays(-1), nil
	}

	if m := dottedDate.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year := today.Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
		}

		parsed, ok := civilDate(year, time.Month(month), day)
		if !ok {
			return domain.Date{}, ErrUnrecognizedDate
		}
		if m[3] == "" && parsed.Before(today) {
			if next, ok := civilDate(year+1, time.Month(month), day); ok {
				return next, nil
			}
			first := domain.NewDate(year+1, time.Month(month), 1)
			return first.AddDays(first.DaysInMonth() - 1), nil
		}
		return parsed, nil
	}

	parsed, err := domain.ParseDate(text)
	if err != nil {
		return domain.Date{}, ErrUnrecognizedDate
	}
	return parsed, nil
}

// civilDate rejects dates time.Date would normalize, such as 31.04.
func civilDate(year int, month time.Month, day int) (domain.Date, bool) {
	if month < time.January || month > time.December || day < 1 {
		return domain.Date{}, false
	}
	d := domain.NewDate(year, month, day)
	if d.Month() != month || d.Day() != day {
		return domain.Date{}, false
	}
	return d, true
}
