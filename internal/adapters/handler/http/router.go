package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/comitanigiacomo/kanso-habit-bot/internal/adapters/handler/http/middleware"
	"github.com/comitanigiacomo/kanso-habit-bot/internal/core/services"
)

// HealthCheck pings one backing service.
type HealthCheck func(ctx context.Context) error

type RouterDependencies struct {
	AuthHandler     *AuthHandler
	HabitHandler    *HabitHandler
	SettingsHandler *SettingsHandler
	StatsHandler    *StatsHandler
	CronHandler     *CronHandler
	TokenService    *services.TokenService
	SecretVerifier  *services.SecretVerifier
	Redis           *redis.Client
	HealthChecks    map[string]HealthCheck
	Logger          *zap.Logger
	StartTime       time.Time
}

func NewRouter(deps RouterDependencies) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger))

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, PATCH, DELETE")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, "+middleware.ServiceSecretHeader)
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	if deps.Redis != nil {
		router.Use(middleware.RateLimiterMiddleware(deps.Redis, 100, 1*time.Minute, logger))
	}

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		statusCode := http.StatusOK
		body := gin.H{
			"status": "ok",
			"uptime": time.Since(deps.StartTime).String(),
		}
		for name, check := range deps.HealthChecks {
			if err := check(ctx); err != nil {
				body[name] = "unreachable"
				statusCode = http.StatusServiceUnavailable
				continue
			}
			body[name] = "connected"
		}
		c.JSON(statusCode, body)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := router.Group("/api/v1")

	deps.AuthHandler.RegisterRoutes(apiV1)

	if deps.CronHandler != nil {
		internal := apiV1.Group("/internal")
		internal.Use(middleware.ServiceSecretMiddleware(deps.SecretVerifier))
		deps.CronHandler.RegisterRoutes(internal)
	}

	protected := apiV1.Group("")
	protected.Use(middleware.AuthMiddleware(deps.TokenService))
	{
		deps.HabitHandler.RegisterRoutes(protected)
		deps.SettingsHandler.RegisterRoutes(protected)
		deps.StatsHandler.RegisterRoutes(protected)
	}

	return router
}
