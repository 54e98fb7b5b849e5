package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/domain"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/services"
)

// maxRangeDays bounds explicit ranges; named periods can reach further back.
const maxRangeDays = 366

type StatsHandler struct {
	svc      *services.StatsService
	settings *services.SettingsService
	now      func() time.Time
}

func NewStatsHandler(svc *services.StatsService, settings *services.SettingsService) *StatsHandler {
	return &StatsHandler{svc: svc, settings: settings, now: time.Now}
}

func (h *StatsHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/stats", h.GetStats)
}

// GetStats serves either ?period=day|week|month|year|all or an explicit
// ?start_date=&end_date= range. The default is the last seven days.
func (h *StatsHandler) GetStats(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	today, err := h.settings.Today(c.Request.Context(), userID, h.now())
	if err != nil {
		respondError(c, err)
		return
	}

	var start, end domain.Date
	startStr, endStr := c.Query("start_date"), c.Query("end_date")

	if startStr == "" && endStr == "" {
		period := c.DefaultQuery("period", "week")
		start, end, err = services.ResolvePeriod(period, today)
		if err != nil {
			respondError(c, err)
			return
		}
	} else {
		end = today
		if endStr != "" {
			if end, err = domain.ParseDate(endStr); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date format, expected YYYY-MM-DD"})
				return
			}
		}
		start = end.AddDays(-6)
		if startStr != "" {
			if start, err = domain.ParseDate(startStr); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date format, expected YYYY-MM-DD"})
				return
			}
		}
		if end.DaysSince(start) > maxRangeDays {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date range too large, max 1 year allowed"})
			return
		}
	}

	stats, err := h.svc.StatsForPeriod(c.Request.Context(), userID, start, end)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
