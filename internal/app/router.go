package app

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/textgate/textgate/internal/middleware"
)

// Router builds the operational HTTP surface: health, metrics, and cache
// administration. Application-facing AI endpoints belong to the hosting
// service, not here.
func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging(a.Logger))
	router.Use(middleware.ErrorLogging(a.Logger))
	router.Use(a.Metrics.PrometheusMiddleware())

	router.GET("/health", a.handleHealth)
	router.GET("/metrics", gin.WrapH(a.Metrics.Handler()))

	v1 := router.Group("/v1")
	{
		v1.GET("/resilience/metrics", a.handleResilienceMetrics)
		v1.POST("/resilience/metrics/reset", a.handleResetMetrics)
		v1.POST("/resilience/breakers/reset", a.handleResetBreakers)
		v1.GET("/cache/stats", a.handleCacheStats)
		v1.POST("/cache/invalidate", a.handleCacheInvalidate)
	}

	return router
}

func (a *App) handleHealth(c *gin.Context) {
	health := a.Resilience.GetHealthStatus()
	cacheStats := a.Cache.GetCacheStats(c.Request.Context())

	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"healthy":    health.Healthy,
		"resilience": health,
		"cache":      gin.H{"status": cacheStats.Status},
	})
}

func (a *App) handleResilienceMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, a.Resilience.GetAllMetrics())
}

func (a *App) handleResetMetrics(c *gin.Context) {
	a.Resilience.ResetMetrics()
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

func (a *App) handleResetBreakers(c *gin.Context) {
	a.Resilience.ResetCircuitBreakers()
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

func (a *App) handleCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, a.Cache.GetCacheStats(c.Request.Context()))
}

type invalidateRequest struct {
	Pattern string `json:"pattern" binding:"required"`
}

func (a *App) handleCacheInvalidate(c *gin.Context) {
	var req invalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pattern is required"})
		return
	}

	a.Cache.InvalidatePattern(c.Request.Context(), req.Pattern)
	c.JSON(http.StatusOK, gin.H{"status": "invalidated", "pattern": req.Pattern})
}
