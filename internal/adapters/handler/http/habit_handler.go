package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/domain"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/services"
	"github.com/gin-gonic/gin"
)

type HabitHandler struct {
	svc      *services.HabitService
	settings *services.SettingsService
	now      func() time.Time
}

func NewHabitHandler(svc *services.HabitService, settings *services.SettingsService) *HabitHandler {
	return &HabitHandler{
		svc:      svc,
		settings: settings,
		now:      time.Now,
	}
}

type createHabitRequest struct {
	Name            string              `json:"name" binding:"required"`
	Emoji           string              `json:"emoji"`
	Description     string              `json:"description"`
	StartDate       string              `json:"start_date"`
	TargetDate      string              `json:"target_date"`
	Repeat          domain.RepeatConfig `json:"repeat"`
	ReminderEnabled *bool               `json:"reminder_enabled"`
	ReminderTime    string              `json:"reminder_time"`
}

type updateFieldsRequest struct {
	Name        *string `json:"name"`
	Emoji       *string `json:"emoji"`
	Description *string `json:"description"`
}

type updateReminderRequest struct {
	Enabled *bool   `json:"enabled"`
	Time    *string `json:"time"`
}

type completionRequest struct {
	Day string `json:"day"`
}

func (h *HabitHandler) RegisterRoutes(router *gin.RouterGroup) {
	habits := router.Group("/habits")
	{
		habits.POST("", h.Create)
		habits.GET("", h.List)
		habits.GET("/due", h.ListDue)
		habits.GET("/:id", h.Get)
		habits.PATCH("/:id", h.UpdateFields)
		habits.PATCH("/:id/reminder", h.UpdateReminder)
		habits.POST("/:id/archive", h.Archive)
		habits.POST("/:id/restore", h.Restore)
		habits.DELETE("/:id", h.Delete)
		habits.POST("/:id/completions", h.MarkCompleted)
		habits.DELETE("/:id/completions/:day", h.UnmarkCompleted)
		habits.POST("/:id/streak/recompute", h.RecomputeStreak)
	}
}

// resolveDay parses raw relative to the user's today; empty means today.
func (h *HabitHandler) resolveDay(c *gin.Context, userID int64, raw string) (domain.Date, bool) {
	today, err := h.settings.Today(c.Request.Context(), userID, h.now())
	if err != nil {
		respondError(c, err)
		return domain.Date{}, false
	}
	if raw == "" {
		return today, true
	}
	day, err := ParseUserDate(raw, today)
	if err != nil {
		respondError(c, err)
		return domain.Date{}, false
	}
	return day, true
}

func (h *HabitHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req createHabitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start, ok := h.resolveDay(c, userID, req.StartDate)
	if !ok {
		return
	}
	var target *domain.Date
	if req.TargetDate != "" {
		t, ok := h.resolveDay(c, userID, req.TargetDate)
		if !ok {
			return
		}
		target = &t
	}

	reminderEnabled := true
	if req.ReminderEnabled != nil {
		reminderEnabled = *req.ReminderEnabled
	}

	habit, err := h.svc.Create(c.Request.Context(), services.CreateHabitInput{
		UserID:          userID,
		Name:            req.Name,
		Emoji:           req.Emoji,
		Description:     req.Description,
		StartDate:       start,
		TargetDate:      target,
		Repeat:          req.Repeat,
		ReminderEnabled: reminderEnabled,
		ReminderTime:    req.ReminderTime,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, habit)
}

func (h *HabitHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	includeArchived, _ := strconv.ParseBool(c.Query("archived"))
	list, err := h.svc.ListHabits(c.Request.Context(), userID, includeArchived)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

func (h *HabitHandler) ListDue(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	day, ok := h.resolveDay(c, userID, c.Query("day"))
	if !ok {
		return
	}

	list, err := h.svc.ListDueHabits(c.Request.Context(), userID, day)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"day": day, "habits": list})
}

func (h *HabitHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	habit, err := h.svc.GetHabit(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if habit == nil {
		respondNotFound(c)
		return
	}

	c.JSON(http.StatusOK, habit)
}

func (h *HabitHandler) UpdateFields(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req updateFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	update := domain.FieldsUpdate{Name: req.Name, Emoji: req.Emoji, Description: req.Description}
	if update.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	found, err := h.svc.UpdateFields(c.Request.Context(), c.Param("id"), userID, update)
	if err != nil {
		respondError(c, err)
		return
	}
	if !found {
		respondNotFound(c)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *HabitHandler) UpdateReminder(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req updateReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	habit, err := h.svc.UpdateReminder(c.Request.Context(), c.Param("id"), userID, req.Enabled, req.Time)
	if err != nil {
		respondError(c, err)
		return
	}
	if habit == nil {
		respondNotFound(c)
		return
	}

	c.JSON(http.StatusOK, habit)
}

func (h *HabitHandler) Archive(c *gin.Context) {
	h.toggleArchive(c, h.svc.ArchiveHabit, "habit already archived")
}

func (h *HabitHandler) Restore(c *gin.Context) {
	h.toggleArchive(c, h.svc.RestoreHabit, "habit is not archived")
}

type archiveOp func(ctx context.Context, id string, userID int64) (bool, error)

func (h *HabitHandler) toggleArchive(c *gin.Context, op archiveOp, conflict string) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	id := c.Param("id")
	changed, err := op(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if changed {
		c.Status(http.StatusNoContent)
		return
	}

	habit, err := h.svc.GetHabit(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if habit == nil {
		respondNotFound(c)
		return
	}
	c.JSON(http.StatusConflict, gin.H{"error": conflict})
}

func (h *HabitHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	deleted, err := h.svc.DeleteHabitPermanently(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !deleted {
		respondNotFound(c)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *HabitHandler) MarkCompleted(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req completionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	day, ok := h.resolveDay(c, userID, req.Day)
	if !ok {
		return
	}

	recorded, habit, err := h.svc.MarkCompleted(c.Request.Context(), c.Param("id"), userID, day)
	if err != nil {
		respondError(c, err)
		return
	}
	if habit == nil {
		respondNotFound(c)
		return
	}

	status := http.StatusOK
	if recorded {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"recorded": recorded, "day": day, "habit": habit})
}

func (h *HabitHandler) UnmarkCompleted(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	day, ok := h.resolveDay(c, userID, c.Param("day"))
	if !ok {
		return
	}

	removed, err := h.svc.UnmarkCompleted(c.Request.Context(), c.Param("id"), userID, day)
	if err != nil {
		respondError(c, err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "completion not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *HabitHandler) RecomputeStreak(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	habit, err := h.svc.RecomputeStreak(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if habit == nil {
		respondNotFound(c)
		return
	}

	c.JSON(http.StatusOK, habit)
}
