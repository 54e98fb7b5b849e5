package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/workers"
)

type MockSweeper struct {
	mock.Mock
}

func (m *MockSweeper) Tick(ctx context.Context) (workers.SweepReport, error) {
	args := m.Called(ctx)
	return args.Get(0).(workers.SweepReport), args.Error(1)
}

func TestCronHandler_RunReminders(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Success: report returned", func(t *testing.T) {
		sweeper := new(MockSweeper)
		sweeper.On("Tick", mock.Anything).Return(workers.SweepReport{Users: 2, Sent: 3}, nil).Once()

		router := gin.New()
		NewCronHandler(sweeper).RegisterRoutes(router.Group(""))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cron/reminders", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"users": 2, "sent": 3, "failures": 0}`, w.Body.String())
		sweeper.AssertExpectations(t)
	})

	t.Run("Fail: store unreachable", func(t *testing.T) {
		sweeper := new(MockSweeper)
		sweeper.On("Tick", mock.Anything).Return(workers.SweepReport{}, errors.New("connection refused"))

		router := gin.New()
		NewCronHandler(sweeper).RegisterRoutes(router.Group(""))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cron/reminders", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "reminder sweep failed")
	})
}
