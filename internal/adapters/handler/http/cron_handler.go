package http

import (
	"context"
	"net/http"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/workers"
	"github.com/gin-gonic/gin"
)

// Sweeper runs one reminder pass.
type Sweeper interface {
	Tick(ctx context.Context) (workers.SweepReport, error)
}

type CronHandler struct {
	sweeper Sweeper
}

func NewCronHandler(sweeper Sweeper) *CronHandler {
	return &CronHandler{sweeper: sweeper}
}

// RegisterRoutes expects r to be guarded by the service secret middleware.
func (h *CronHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/cron/reminders", h.RunReminders)
}

func (h *CronHandler) RunReminders(c *gin.Context) {
	report, err := h.sweeper.Tick(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reminder sweep failed", "report": report})
		return
	}
	c.JSON(http.StatusOK, report)
}
