package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/adapters/repository"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/domain"
)

type sentMessage struct {
	userID int64
	text   string
}

type recordingNotifier struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[int64]bool
}

func (n *recordingNotifier) Send(ctx context.Context, userID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[userID] {
		return errors.New("chat unreachable")
	}
	n.sent = append(n.sent, sentMessage{userID: userID, text: text})
	return nil
}

func (n *recordingNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

type staticSettings map[int64]string

func (s staticSettings) GetUserSettings(ctx context.Context, userID int64) (*domain.UserSettings, error) {
	tz, ok := s[userID]
	if !ok {
		return nil, domain.ErrSettingsNotFound
	}
	return &domain.UserSettings{UserID: userID, Timezone: tz, DefaultReminderTime: "21:00"}, nil
}

type flakyHabits struct {
	*repository.InMemoryHabitRepository
	mu   sync.Mutex
	fail bool
}

func (f *flakyHabits) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *flakyHabits) ListReminderUserIDs(ctx context.Context) ([]int64, error) {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return nil, errors.New("connection reset")
	}
	return f.InMemoryHabitRepository.ListReminderUserIDs(ctx)
}

type sweepFixture struct {
	habits      *flakyHabits
	completions *repository.InMemoryCompletionRepository
	notifier    *recordingNotifier
	settings    staticSettings
	now         time.Time
}

func newSweepFixture() *sweepFixture {
	return &sweepFixture{
		habits:      &flakyHabits{InMemoryHabitRepository: repository.NewInMemoryHabitRepository()},
		completions: repository.NewInMemoryCompletionRepository(),
		notifier:    &recordingNotifier{failFor: map[int64]bool{}},
		settings:    staticSettings{},
		// Wednesday.
		now: time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC),
	}
}

func (f *sweepFixture) sweeper(logger *zap.Logger) *ReminderSweeper {
	return NewReminderSweeper(f.habits, f.completions, f.settings, f.notifier, ReminderSweeperConfig{
		Interval:            MinReminderInterval,
		Location:            time.UTC,
		DefaultReminderTime: "21:00",
		Now:                 func() time.Time { return f.now },
	}, logger)
}

func (f *sweepFixture) habit(t *testing.T, userID int64, name string, rule domain.Repeat, at string, edit func(h *domain.Habit)) *domain.Habit {
	t.Helper()
	h, err := domain.NewHabit(userID, name, "💧", "", d("2024-01-01"), nil, rule, true, at)
	require.NoError(t, err)
	if edit != nil {
		edit(h)
	}
	require.NoError(t, f.habits.Create(context.Background(), h))
	return h
}

func TestReminderSweeper_Tick(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture()
	f.settings[1] = "UTC"

	due := f.habit(t, 1, "Water", domain.Daily{}, "09:00", nil)
	f.habit(t, 1, "Later", domain.Daily{}, "10:00", nil)
	done := f.habit(t, 1, "Done", domain.Daily{}, "08:00", nil)
	seedCompletions(t, f.completions, done, "2024-01-10")
	f.habit(t, 1, "Sent", domain.Daily{}, "08:00", func(h *domain.Habit) {
		h.Reminder.LastSentDate = domain.DatePtr(d("2024-01-10"))
	})
	f.habit(t, 1, "Tuesday", domain.Weekdays{Days: []int{1}}, "08:00", nil)
	f.habit(t, 1, "Muted", domain.Daily{}, "08:00", func(h *domain.Habit) { h.Reminder.Enabled = false })
	f.habit(t, 1, "Shelved", domain.Daily{}, "08:00", func(h *domain.Habit) { h.Archived = true })
	f.habit(t, 1, "Future", domain.Daily{}, "08:00", func(h *domain.Habit) { h.StartDate = d("2024-02-01") })

	s := f.sweeper(nil)

	report, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Users: 1, Sent: 1}, report)

	msgs := f.notifier.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(1), msgs[0].userID)
	assert.Equal(t, "💧 *Habit reminder*\nToday 10.01.2024 is the time to complete «Water»!", msgs[0].text)

	stored, _ := f.habits.GetByID(ctx, due.ID, 1)
	require.NotNil(t, stored.Reminder.LastSentDate)
	assert.Equal(t, "2024-01-10", stored.Reminder.LastSentDate.String())

	report, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Sent, "at most one reminder per due day")

	f.now = f.now.Add(time.Hour)
	report, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent, "10:00 habit becomes eligible")

	f.now = f.now.Add(24 * time.Hour)
	report, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Sent, "next day reopens Water, Later, Done and Sent")
}

func TestReminderSweeper_UsesUserTimezone(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture()
	f.settings[1] = "Asia/Tokyo"
	f.settings[2] = "Not/AZone"

	// 09:30 UTC is 18:30 in Tokyo.
	f.habit(t, 1, "Evening", domain.Daily{}, "18:00", nil)
	// Invalid zone falls back to UTC where 18:00 has not come yet.
	f.habit(t, 2, "Evening", domain.Daily{}, "18:00", nil)
	// No settings at all also falls back.
	f.habit(t, 3, "Morning", domain.Daily{}, "09:00", nil)

	report, err := f.sweeper(nil).Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Users)
	assert.Equal(t, 2, report.Sent)
}

func TestReminderSweeper_IsolatesFailures(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture()
	f.settings[1] = "UTC"
	f.settings[2] = "UTC"
	f.notifier.failFor[1] = true

	broken := f.habit(t, 1, "Water", domain.Daily{}, "09:00", nil)
	f.habit(t, 2, "Water", domain.Daily{}, "09:00", nil)

	core, logs := observer.New(zap.InfoLevel)
	s := f.sweeper(zap.New(core))

	report, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, report.Failures)

	failed := logs.FilterMessage("reminder sweep: habit failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, int64(1), failed[0].ContextMap()["user_id"])

	stored, _ := f.habits.GetByID(ctx, broken.ID, 1)
	assert.Nil(t, stored.Reminder.LastSentDate, "failed sends stay eligible")

	f.notifier.failFor[1] = false
	report, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
}

func TestReminderSweeper_StoreFailures(t *testing.T) {
	ctx := context.Background()
	f := newSweepFixture()
	f.habit(t, 1, "Water", domain.Daily{}, "09:00", nil)

	core, logs := observer.New(zap.InfoLevel)
	s := f.sweeper(zap.New(core))

	f.habits.setFail(true)
	for i := 0; i < 2; i++ {
		_, err := s.Tick(ctx)
		assert.ErrorContains(t, err, "connection reset")
	}

	aborted := logs.FilterMessage("reminder sweep aborted: store unavailable").All()
	require.Len(t, aborted, 2)
	assert.Equal(t, int64(1), aborted[0].ContextMap()["consecutive_failures"])
	assert.Equal(t, int64(2), aborted[1].ContextMap()["consecutive_failures"])

	f.habits.setFail(false)
	report, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, logs.FilterMessage("reminder sweep store recovered").Len())
}

func TestReminderSweeper_StartStop(t *testing.T) {
	f := newSweepFixture()
	f.habit(t, 1, "Water", domain.Daily{}, "09:00", nil)
	s := f.sweeper(nil)

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSweeperRunning)

	require.Eventually(t, func() bool {
		return len(f.notifier.messages()) == 1
	}, 2*time.Second, 10*time.Millisecond, "first tick runs immediately")

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	require.NoError(t, s.Stop(stopCtx), "stopping twice is a no-op")

	require.NoError(t, s.Start(context.Background()), "restart after stop")
	require.NoError(t, s.Stop(stopCtx))
}

func TestReminderSweeper_StopsWithParentContext(t *testing.T) {
	f := newSweepFixture()
	s := f.sweeper(nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	require.NoError(t, s.Stop(stopCtx))
}

func TestNewReminderSweeper_IntervalFloor(t *testing.T) {
	s := NewReminderSweeper(nil, nil, nil, nil, ReminderSweeperConfig{Interval: time.Second}, nil)
	assert.Equal(t, MinReminderInterval, s.Interval())

	s = NewReminderSweeper(nil, nil, nil, nil, ReminderSweeperConfig{}, nil)
	assert.Equal(t, DefaultReminderInterval, s.Interval())
}

func TestRenderReminder(t *testing.T) {
	h := &domain.Habit{Name: "Meditate"}
	assert.Equal(t,
		"✅ *Habit reminder*\nToday 29.02.2024 is the time to complete «Meditate»!",
		RenderReminder(h, d("2024-02-29")),
	)
}
