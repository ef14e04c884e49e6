package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/vendor-analytics/internal/api/handlers"
	"github.com/andresuchdata/vendor-analytics/internal/api/middleware"
	"github.com/andresuchdata/vendor-analytics/internal/metrics"
	"github.com/andresuchdata/vendor-analytics/internal/service"
)

var _ handlers.AnalyticsService = (*service.AnalyticsService)(nil)

type Services struct {
	Analytics handlers.AnalyticsService
	Metrics   *metrics.Collector
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	if services != nil && services.Metrics != nil {
		router.Use(services.Metrics.Middleware())
	}

	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if services != nil && services.Metrics != nil {
		router.GET("/metrics", gin.WrapH(services.Metrics.Handler()))
	}

	apiGroup := router.Group("/api/v1")

	if services != nil && services.Analytics != nil {
		analyticsHandler := handlers.NewAnalyticsHandler(services.Analytics)
		analyticsGroup := apiGroup.Group("/analytics")
		{
			analyticsGroup.GET("/summary", analyticsHandler.GetSummaries)
			analyticsGroup.GET("/scores", analyticsHandler.GetScores)
			analyticsGroup.GET("/tiers", analyticsHandler.GetTierCounts)
			analyticsGroup.GET("/inventory", analyticsHandler.GetInventory)
			analyticsGroup.GET("/pricing", analyticsHandler.GetPricing)
			analyticsGroup.GET("/anomalies", analyticsHandler.GetAnomalies)
			analyticsGroup.GET("/forecasts", analyticsHandler.GetForecasts)
		}

		alertHandler := handlers.NewAlertHandler(services.Analytics)
		alertGroup := apiGroup.Group("/alerts")
		{
			alertGroup.GET("/active", alertHandler.GetActive)
			alertGroup.GET("/summary", alertHandler.GetSummary)
			alertGroup.GET("/history", alertHandler.GetHistory)
			alertGroup.GET("/trend", alertHandler.GetTrend)
		}

		runGroup := apiGroup.Group("/runs")
		{
			runGroup.POST("", analyticsHandler.CreateRun)
			runGroup.GET("", analyticsHandler.GetRuns)
			runGroup.GET("/:id", analyticsHandler.GetRun)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		for _, part := range strings.Split(origin, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
