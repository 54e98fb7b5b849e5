package http

import (
	"errors"
	"net/http"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/adapters/handler/http/middleware"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/services"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	service *services.AuthService
}

func NewAuthHandler(service *services.AuthService) *AuthHandler {
	return &AuthHandler{
		service: service,
	}
}

type tokenRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

type tokenResponse struct {
	Token  string `json:"token"`
	UserID int64  `json:"user_id"`
}

// IssueToken is called by the chat transport on a user's first contact. The
// transport authenticates with the shared service secret.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.service.IssueToken(c.Request.Context(), c.GetHeader(middleware.ServiceSecretHeader), req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidServiceSecret):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid service secret"})
		default:
			respondError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, tokenResponse{Token: token, UserID: req.UserID})
}

func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/token", h.IssueToken)
	}
}
