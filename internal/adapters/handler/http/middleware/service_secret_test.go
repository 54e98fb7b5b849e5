package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestServiceSecretMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	hash, err := services.HashSecret("cron-secret")
	require.NoError(t, err)

	tests := []struct {
		name       string
		verifier   *services.SecretVerifier
		header     string
		wantStatus int
	}{
		{"Valid secret", services.NewSecretVerifier(hash), "cron-secret", http.StatusNoContent},
		{"Wrong secret", services.NewSecretVerifier(hash), "nope", http.StatusUnauthorized},
		{"Missing header", services.NewSecretVerifier(hash), "", http.StatusUnauthorized},
		{"Unconfigured hash rejects all", services.NewSecretVerifier(""), "cron-secret", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.POST("/cron", ServiceSecretMiddleware(tt.verifier), func(c *gin.Context) {
				c.Status(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodPost, "/cron", nil)
			if tt.header != "" {
				req.Header.Set(ServiceSecretHeader, tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.DebugLevel)

	router := gin.New()
	router.Use(RequestLogger(zap.New(core)))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/ok", "/boom"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.DebugLevel, entries[0].Level)
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
	assert.Equal(t, "/boom", entries[1].ContextMap()["path"])
}
