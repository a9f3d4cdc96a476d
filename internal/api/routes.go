package api

import (
	"context"
	"time"

	"github.com/RishiKendai/plagscan/internal/config"
	"github.com/RishiKendai/plagscan/internal/metrics"

	"github.com/gin-gonic/gin"
)

const (
	limiterIdleTTL   = time.Hour
	limiterSweepTick = 5 * time.Minute
)

// SetupRoutes builds the router. ctx bounds background work tied to the
// server, such as dropping idle rate limiters.
func SetupRoutes(
	ctx context.Context,
	cfg *config.Config,
	computer Computer,
	reports ReportStore,
	status StatusStore,
	m *metrics.Metrics,
) *gin.Engine {
	router := gin.Default()

	// Create handler
	handler := NewHandler(cfg, computer, reports, status)

	// Create rate limiter
	rateLimiter := NewRateLimiter(cfg.RateLimitRPS, int(cfg.RateLimitRPS*2), limiterIdleTTL)
	go rateLimiter.RunJanitor(ctx, limiterSweepTick)

	// Middleware
	router.Use(MetricsMiddleware(m))
	router.Use(ErrorHandlerMiddleware())

	// Health endpoint (no auth)
	router.GET("/health", handler.Health)

	// API routes (with auth and rate limiting)
	api := router.Group("/api/v1")
	api.Use(JWTAuthMiddleware(cfg.JWTSecret))
	api.Use(RateLimitMiddleware(rateLimiter))
	{
		api.POST("/compare", handler.Compare)
		api.GET("/runs/:runId", handler.GetRun)
		api.GET("/runs/:runId/status", handler.GetStatus)
		api.GET("/runs/:runId/graph", handler.GetGraph)
	}

	return router
}
