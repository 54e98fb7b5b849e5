package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	ErrHabitNameEmpty        = errors.New("habit name cannot be empty")
	ErrHabitNameTooLong      = errors.New("habit name is too long (max 50 chars)")
	ErrHabitNameNotPrintable = errors.New("habit name contains non-printable characters")
	ErrHabitDescTooLong      = errors.New("habit description is too long (max 500 chars)")
	ErrHabitEmojiTooLong     = errors.New("habit emoji is too long (max 8 chars)")
	ErrHabitInvalidUserID    = errors.New("invalid user id")
	ErrStartDateRequired     = errors.New("start date is required")
	ErrTargetBeforeStart     = errors.New("target date cannot be before start date")
	ErrInvalidReminder       = errors.New("invalid reminder format (must be HH:MM 24h)")
	ErrHabitArchived         = errors.New("cannot update an archived habit")
)

var reminderRegex = regexp.MustCompile(`^([0-1][0-9]|2[0-3]):[0-5][0-9]$`)

const (
	DefaultEmoji        = "✅"
	DefaultReminderTime = "21:00"
	MaxNameLen          = 50
	MaxDescLen          = 500
	MaxEmojiLen         = 8
)

type Reminder struct {
	Enabled      bool   `json:"enabled"`
	Time         string `json:"time"`
	LastSentDate *Date  `json:"last_sent_date,omitempty"`
}

type Habit struct {
	ID              string       `json:"id"`
	UserID          int64        `json:"user_id"`
	Name            string       `json:"name"`
	Emoji           string       `json:"emoji"`
	Description     string       `json:"description"`
	StartDate       Date         `json:"start_date"`
	TargetDate      *Date        `json:"target_date,omitempty"`
	Archived        bool         `json:"archived"`
	Repeat          RepeatConfig `json:"repeat"`
	Reminder        Reminder     `json:"reminder"`
	CurrentStreak   int          `json:"current_streak"`
	BestStreak      int          `json:"best_streak"`
	LastCompletedOn *Date        `json:"last_completed_on,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// ValidReminderTime reports whether s is a 24h HH:MM string.
func ValidReminderTime(s string) bool {
	return reminderRegex.MatchString(s)
}

func normalizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrHabitNameEmpty
	}
	if utf8.RuneCountInString(trimmed) > MaxNameLen {
		return "", ErrHabitNameTooLong
	}
	for _, r := range trimmed {
		if !printableInName(r) {
			return "", ErrHabitNameNotPrintable
		}
	}
	return trimmed, nil
}

// printableInName also admits the format characters that glue composite
// emoji together (zero-width joiner, tag characters). Bidi overrides stay out.
func printableInName(r rune) bool {
	if unicode.IsPrint(r) {
		return true
	}
	return unicode.Is(unicode.Cf, r) && !unicode.Is(unicode.Bidi_Control, r)
}

func normalizeDescription(desc string) (string, error) {
	cleanDesc := strings.TrimSpace(desc)
	if utf8.RuneCountInString(cleanDesc) > MaxDescLen {
		return "", ErrHabitDescTooLong
	}
	return cleanDesc, nil
}

func normalizeEmoji(emoji string) (string, error) {
	clean := strings.TrimSpace(emoji)
	if clean == "" {
		return DefaultEmoji, nil
	}
	if utf8.RuneCountInString(clean) > MaxEmojiLen {
		return "", ErrHabitEmojiTooLong
	}
	return clean, nil
}

func NewHabit(userID int64, name, emoji, description string, start Date, target *Date, rule Repeat, reminderEnabled bool, reminderTime string) (*Habit, error) {
	if userID == 0 {
		return nil, ErrHabitInvalidUserID
	}

	cleanName, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	cleanDesc, err := normalizeDescription(description)
	if err != nil {
		return nil, err
	}
	cleanEmoji, err := normalizeEmoji(emoji)
	if err != nil {
		return nil, err
	}

	if start.IsZero() {
		return nil, ErrStartDateRequired
	}
	if target != nil && target.IsZero() {
		target = nil
	}
	if target != nil && target.Before(start) {
		return nil, ErrTargetBeforeStart
	}

	if err := ValidateRepeat(rule); err != nil {
		return nil, err
	}

	if reminderTime == "" {
		reminderTime = DefaultReminderTime
	}
	if !ValidReminderTime(reminderTime) {
		return nil, ErrInvalidReminder
	}

	now := time.Now().UTC()

	return &Habit{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        cleanName,
		Emoji:       cleanEmoji,
		Description: cleanDesc,
		StartDate:   start,
		TargetDate:  target,
		Repeat:      ConfigOf(rule),
		Reminder: Reminder{
			Enabled: reminderEnabled,
			Time:    reminderTime,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Rule decodes the persisted repeat config against the habit's start date.
func (h *Habit) Rule() Repeat {
	return h.Repeat.Decode(h.StartDate)
}

// FieldsUpdate is a partial edit of the descriptive fields; nil means "keep".
type FieldsUpdate struct {
	Name        *string
	Emoji       *string
	Description *string
}

func (u FieldsUpdate) Empty() bool {
	return u.Name == nil && u.Emoji == nil && u.Description == nil
}

// ApplyFields validates the whole update before touching the habit.
func (h *Habit) ApplyFields(u FieldsUpdate) (bool, error) {
	name, emoji, desc := h.Name, h.Emoji, h.Description

	var err error
	if u.Name != nil {
		if name, err = normalizeName(*u.Name); err != nil {
			return false, err
		}
	}
	if u.Emoji != nil {
		if emoji, err = normalizeEmoji(*u.Emoji); err != nil {
			return false, err
		}
	}
	if u.Description != nil {
		if desc, err = normalizeDescription(*u.Description); err != nil {
			return false, err
		}
	}

	if name == h.Name && emoji == h.Emoji && desc == h.Description {
		return false, nil
	}

	h.Name = name
	h.Emoji = emoji
	h.Description = desc
	h.UpdatedAt = time.Now().UTC()
	return true, nil
}

// ConfigureReminder applies a partial reminder change. Any effective change
// clears the last-sent gate so the habit is eligible for a fresh reminder.
func (h *Habit) ConfigureReminder(enabled *bool, reminderTime *string) (bool, error) {
	next := h.Reminder
	if enabled != nil {
		next.Enabled = *enabled
	}
	if reminderTime != nil && *reminderTime != "" {
		if !ValidReminderTime(*reminderTime) {
			return false, ErrInvalidReminder
		}
		next.Time = *reminderTime
	}

	if next.Enabled == h.Reminder.Enabled && next.Time == h.Reminder.Time {
		return false, nil
	}

	next.LastSentDate = nil
	h.Reminder = next
	h.UpdatedAt = time.Now().UTC()
	return true, nil
}

// RecordCompletion updates the cached streak fields after a new completion on day.
// The reminder gate moves forward to day so no reminder follows a completion;
// backfilling an earlier day never moves it back.
func (h *Habit) RecordCompletion(day Date, streak int) {
	h.CurrentStreak = streak
	if streak > h.BestStreak {
		h.BestStreak = streak
	}
	h.LastCompletedOn = DatePtr(day)
	if gate := h.Reminder.LastSentDate; gate == nil || gate.Before(day) {
		h.Reminder.LastSentDate = DatePtr(day)
	}
	h.UpdatedAt = time.Now().UTC()
}

func (h *Habit) Archive() {
	if h.Archived {
		return
	}
	h.Archived = true
	h.UpdatedAt = time.Now().UTC()
}

func (h *Habit) Restore() {
	if !h.Archived {
		return
	}
	h.Archived = false
	h.UpdatedAt = time.Now().UTC()
}

// StreakState is the cached streak triple written back after a completion or repair.
type StreakState struct {
	Current         int
	Best            int
	LastCompletedOn *Date
	ReminderSentOn  *Date
}

func (h *Habit) StreakState() StreakState {
	return StreakState{
		Current:         h.CurrentStreak,
		Best:            h.BestStreak,
		LastCompletedOn: h.LastCompletedOn,
		ReminderSentOn:  h.Reminder.LastSentDate,
	}
}

// ReplaceStreak overwrites the cached streak fields with a full recompute.
// Unlike RecordCompletion it may lower Best.
func (h *Habit) ReplaceStreak(current, best int, last *Date) bool {
	if h.CurrentStreak == current && h.BestStreak == best && sameDate(h.LastCompletedOn, last) {
		return false
	}
	h.CurrentStreak = current
	h.BestStreak = best
	h.LastCompletedOn = last
	h.UpdatedAt = time.Now().UTC()
	return true
}

func sameDate(a, b *Date) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
