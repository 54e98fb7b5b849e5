package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	adapterHTTP "github.com/comitanigiacomo/kanso-habit-bot/internal/adapters/handler/http"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/adapters/handler/http/middleware"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/config"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/domain"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/services"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/workers"
)

const e2eSecret = "transport-secret"

func setupE2E(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := services.HashSecret(e2eSecret)
	require.NoError(t, err)

	env := map[string]string{
		"DB_DRIVER":        config.DriverMemory,
		"JWT_SECRET":       "e2e-jwt-secret",
		"CRON_SECRET_HASH": hash,
		"TZ":               "UTC",
	}
	testCfg, err := config.FromEnv(func(key string) string { return env[key] })
	require.NoError(t, err)

	a, err := buildApp(context.Background(), testCfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	return adapterHTTP.NewRouter(a.routerDependencies(time.Now()))
}

func call(t *testing.T, router *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestE2E_HabitFlow(t *testing.T) {
	router := setupE2E(t)
	const userID int64 = 424242

	var token string
	t.Run("1. Transport requests a token", func(t *testing.T) {
		w := call(t, router, http.MethodPost, "/api/v1/auth/token", gin.H{"user_id": userID},
			map[string]string{middleware.ServiceSecretHeader: e2eSecret})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp struct {
			Token  string `json:"token"`
			UserID int64  `json:"user_id"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, userID, resp.UserID)
		require.NotEmpty(t, resp.Token)
		token = resp.Token
	})

	t.Run("2. Wrong secret is rejected", func(t *testing.T) {
		w := call(t, router, http.MethodPost, "/api/v1/auth/token", gin.H{"user_id": userID},
			map[string]string{middleware.ServiceSecretHeader: "nope"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	auth := func() map[string]string {
		return map[string]string{"Authorization": "Bearer " + token}
	}

	var habitID string
	t.Run("3. Create habit", func(t *testing.T) {
		w := call(t, router, http.MethodPost, "/api/v1/habits", gin.H{
			"name":   "Read",
			"emoji":  "📚",
			"repeat": gin.H{"mode": "daily"},
		}, auth())
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var h domain.Habit
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &h))
		assert.Equal(t, userID, h.UserID)
		assert.Equal(t, domain.RepeatDaily, h.Repeat.Mode)
		assert.Equal(t, domain.DefaultReminderTime, h.Reminder.Time)
		habitID = h.ID
	})

	t.Run("4. Mark today twice", func(t *testing.T) {
		w := call(t, router, http.MethodPost, "/api/v1/habits/"+habitID+"/completions", nil, auth())
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var first struct {
			Recorded bool         `json:"recorded"`
			Habit    domain.Habit `json:"habit"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
		assert.True(t, first.Recorded)
		assert.Equal(t, 1, first.Habit.CurrentStreak)
		require.NotNil(t, first.Habit.Reminder.LastSentDate)

		w = call(t, router, http.MethodPost, "/api/v1/habits/"+habitID+"/completions", nil, auth())
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("5. Stats count the completion", func(t *testing.T) {
		w := call(t, router, http.MethodGet, "/api/v1/stats?period=day", nil, auth())
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var stats domain.PeriodStats
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
		assert.Equal(t, 1, stats.TotalCompleted)
		require.Len(t, stats.HabitStats, 1)
		assert.Equal(t, habitID, stats.HabitStats[0].HabitID)
	})

	t.Run("6. Cron sweep skips the completed habit", func(t *testing.T) {
		w := call(t, router, http.MethodPost, "/api/v1/internal/cron/reminders", nil,
			map[string]string{middleware.ServiceSecretHeader: e2eSecret})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var report workers.SweepReport
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		assert.Equal(t, 1, report.Users)
		assert.Equal(t, 0, report.Sent)
		assert.Equal(t, 0, report.Failures)
	})

	t.Run("7. Cron without secret is rejected", func(t *testing.T) {
		w := call(t, router, http.MethodPost, "/api/v1/internal/cron/reminders", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("8. Delete habit", func(t *testing.T) {
		w := call(t, router, http.MethodDelete, "/api/v1/habits/"+habitID, nil, auth())
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = call(t, router, http.MethodGet, "/api/v1/habits/"+habitID, nil, auth())
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("9. Health reports ok without backing services", func(t *testing.T) {
		w := call(t, router, http.MethodGet, "/health", nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestBuildApp_RejectsUnknownDriver(t *testing.T) {
	testCfg := &config.Config{DBDriver: "sqlite", Notifier: config.NotifierLog}
	_, err := buildApp(context.Background(), testCfg, zap.NewNop())
	assert.Error(t, err)
}
