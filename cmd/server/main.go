package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/vendor-analytics/internal/api"
	"github.com/andresuchdata/vendor-analytics/internal/cache"
	"github.com/andresuchdata/vendor-analytics/internal/config"
	"github.com/andresuchdata/vendor-analytics/internal/metrics"
	"github.com/andresuchdata/vendor-analytics/internal/pipeline"
	"github.com/andresuchdata/vendor-analytics/internal/repository/postgres"
	"github.com/andresuchdata/vendor-analytics/internal/service"
	"github.com/andresuchdata/vendor-analytics/internal/storage"
	"github.com/andresuchdata/vendor-analytics/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize logger
	logger.SetLevel(cfg.App.LogLevel)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if _, err := db.Migrate(context.Background()); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	analyticsCache, err := cache.NewAnalyticsCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Redis unavailable, caching disabled")
		analyticsCache = cache.NewNoopAnalyticsCache()
	}

	collector := metrics.NewCollector()
	runs := pipeline.NewRepository(db.DB.DB)

	runner, err := pipeline.NewRunner(pipeline.ConfigFrom(cfg.Analytics),
		pipeline.WithCommitter(postgres.NewAnalyticsRepository(db)),
		pipeline.WithTracker(runs),
		pipeline.WithRecorder(collector),
	)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to build pipeline")
	}

	opts := []service.Option{service.WithCache(analyticsCache)}
	if cfg.Storage.Enabled {
		client, err := storage.NewMinioClient(cfg.Storage)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to configure object storage")
		}
		opts = append(opts, service.WithPublisher(&service.Publisher{Store: client, Prefix: cfg.Storage.Prefix}))
	}

	analyticsService := service.NewAnalyticsService(
		postgres.NewAnalyticsRepository(db),
		postgres.NewAlertRepository(db),
		runs,
		runner,
		opts...,
	)

	// Initialize HTTP server
	router := api.NewRouter(&api.Services{Analytics: analyticsService, Metrics: collector}, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
