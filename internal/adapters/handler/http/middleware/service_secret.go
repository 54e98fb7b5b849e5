package middleware

import (
	"net/http"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/services"
	"github.com/gin-gonic/gin"
)

const ServiceSecretHeader = "X-Service-Secret"

// ServiceSecretMiddleware admits trusted callers (the chat transport and the
// platform scheduler) that present the shared secret in ServiceSecretHeader.
func ServiceSecretMiddleware(verifier *services.SecretVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !verifier.Verify(c.GetHeader(ServiceSecretHeader)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid service secret"})
			return
		}
		c.Next()
	}
}
