package http

import (
	"errors"
	"net/http"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/adapters/handler/http/middleware"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/domain"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/services"
	"github.com/gin-gonic/gin"
)

var validationErrors = []error{
	domain.ErrHabitNameEmpty,
	domain.ErrHabitNameTooLong,
	domain.ErrHabitNameNotPrintable,
	domain.ErrHabitDescTooLong,
	domain.ErrHabitEmojiTooLong,
	domain.ErrHabitInvalidUserID,
	domain.ErrStartDateRequired,
	domain.ErrTargetBeforeStart,
	domain.ErrInvalidReminder,
	domain.ErrInvalidTimezone,
	domain.ErrInvalidRepeatMode,
	domain.ErrInvalidWeekdays,
	domain.ErrInvalidWeekday,
	domain.ErrInvalidMonthDay,
	domain.ErrInvalidInterval,
	domain.ErrInvalidDate,
	domain.ErrInvalidCompletion,
	services.ErrUnknownPeriod,
	services.ErrInvalidRange,
	ErrUnrecognizedDate,
}

func isValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// respondError maps validation failures to 400 and hides everything else behind a 500.
func respondError(c *gin.Context, err error) {
	switch {
	case isValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrHabitArchived):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func respondNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "habit not found"})
}

func requireUserID(c *gin.Context) (int64, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
	}
	return userID, ok
}
