package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/samber/do/v2"

	"github.com/khabaroff/meeting-minutes-webhooks/src/config"
	"github.com/khabaroff/meeting-minutes-webhooks/src/database"
	"github.com/khabaroff/meeting-minutes-webhooks/src/handlers"
	"github.com/khabaroff/meeting-minutes-webhooks/src/logging"
	"github.com/khabaroff/meeting-minutes-webhooks/src/metrics"
	"github.com/khabaroff/meeting-minutes-webhooks/src/middleware"
	"github.com/khabaroff/meeting-minutes-webhooks/src/repositories"
	"github.com/khabaroff/meeting-minutes-webhooks/src/services"
)

const (
	serviceName     = "meeting-minutes-webhooks"
	serviceVersion  = "1.0.0"
	shutdownTimeout = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config validation failed: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(logging.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: serviceName,
	})
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Info().
		Int("port", cfg.Port).
		Str("env", cfg.Env).
		Str("event_cache", string(cfg.EventCacheBackend)).
		Bool("persistent_store", cfg.DatabaseURL != "").
		Msg("starting server")

	injector := setupDI(cfg)
	a, err := newApp(cfg, injector)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build application")
	}

	a.cleanup.Start(context.Background())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Synchronous /minutes/generate calls wait for the transcript and the model
		WriteTimeout: 15 * time.Minute,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	a.shutdown(ctx)

	log.Info().Msg("server shut down successfully")
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	database.RegisterDI(injector)
	repositories.RegisterDI(injector)
	services.RegisterDI(injector)
	metrics.RegisterDI(injector)

	return injector
}

// app holds the resolved components the HTTP layer and shutdown need
type app struct {
	cfg       *config.Config
	db        *database.Database
	cache     services.EventCache
	crypto    *services.EventCrypto
	processor *services.Processor
	minutes   *services.MinutesService
	analytics *services.AnalyticsService
	cleanup   *services.CleanupService
	exporter  *metrics.OTelExporter

	webhookHandler *handlers.WebhookHandler
	limiters       []*middleware.RateLimiter
}

func newApp(cfg *config.Config, injector do.Injector) (*app, error) {
	a := &app{cfg: cfg}

	if cfg.DatabaseURL != "" {
		db, err := do.Invoke[*database.Database](injector)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		a.db = db
		log.Info().Msg("database connected")
	}

	var err error
	if a.cache, err = do.Invoke[services.EventCache](injector); err != nil {
		return nil, fmt.Errorf("failed to initialize event cache: %w", err)
	}
	if a.crypto, err = do.Invoke[*services.EventCrypto](injector); err != nil {
		return nil, fmt.Errorf("failed to initialize event crypto: %w", err)
	}
	if a.processor, err = do.Invoke[*services.Processor](injector); err != nil {
		return nil, fmt.Errorf("failed to initialize processor: %w", err)
	}
	if a.minutes, err = do.Invoke[*services.MinutesService](injector); err != nil {
		return nil, fmt.Errorf("failed to initialize minutes service: %w", err)
	}
	if a.analytics, err = do.Invoke[*services.AnalyticsService](injector); err != nil {
		return nil, fmt.Errorf("failed to initialize analytics service: %w", err)
	}
	if a.cleanup, err = do.Invoke[*services.CleanupService](injector); err != nil {
		return nil, fmt.Errorf("failed to initialize cleanup service: %w", err)
	}
	if a.exporter, err = do.Invoke[*metrics.OTelExporter](injector); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if a.analytics.Enabled() {
		log.Info().Str("host", cfg.PostHogHost).Msg("PostHog analytics enabled")
	} else {
		log.Info().Msg("PostHog analytics disabled")
	}
	if a.crypto != nil {
		log.Info().Msg("Lark event decryption enabled")
	}

	retry := a.processor.RetryConfig()
	log.Info().
		Int("max_retries", retry.MaxRetries).
		Dur("initial_delay", retry.InitialDelay).
		Bool("jitter", retry.Jitter).
		Msg("transcript retry configured")

	return a, nil
}

func (a *app) router() *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(gin.Recovery())

	if origins := a.cfg.Origins(); len(origins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  origins,
			AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
			MaxAge:        12 * time.Hour,
		}))
	}

	checks := map[string]handlers.HealthCheck{}
	if a.db != nil {
		checks["database"] = a.db.Health
	}
	if rc, ok := a.cache.(*services.RedisEventCache); ok {
		checks["redis"] = rc.Ping
	}

	healthHandler := handlers.NewHealthHandler(serviceName, serviceVersion, checks)
	a.webhookHandler = handlers.NewWebhookHandler(a.processor, a.crypto, a.cfg.LarkVerificationToken)
	minutesHandler := handlers.NewMinutesHandler(a.processor, a.minutes)
	adminHandler := handlers.NewAdminHandler(a.processor)

	webhookLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerMinute: a.cfg.WebhookRequestsPerMinute,
	})
	generateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerMinute: a.cfg.GenerationRequestsPerMinute,
	})
	a.limiters = append(a.limiters, webhookLimiter, generateLimiter)

	router.GET("/health", healthHandler.HandleHealth)
	router.GET("/ready", healthHandler.HandleReady)
	router.GET("/info", healthHandler.HandleInfo)
	router.GET("/metrics", gin.WrapH(a.exporter.Handler()))

	router.POST("/webhook/lark",
		webhookLimiter.Handler(),
		middleware.LarkSignatureMiddleware(a.crypto),
		a.webhookHandler.HandleLarkWebhook,
	)

	minutes := router.Group("/minutes")
	{
		minutes.POST("/generate", generateLimiter.Handler(), minutesHandler.HandleGenerate)
		minutes.GET("", minutesHandler.HandleList)
		minutes.GET("/:meeting_id", minutesHandler.HandleGetByMeeting)
	}

	admin := router.Group("/admin")
	{
		admin.DELETE("/events/cache", adminHandler.HandleClearEventCache)
		admin.GET("/events/:event_id", adminHandler.HandleGetEvent)
	}

	return router
}

// shutdown drains background work and releases resources
func (a *app) shutdown(ctx context.Context) {
	if a.webhookHandler != nil {
		if err := a.webhookHandler.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("webhook processing still running at shutdown")
		}
	}

	a.cleanup.Stop()
	for _, l := range a.limiters {
		l.Stop()
	}

	if err := a.exporter.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("metrics shutdown error")
	}
	if err := a.analytics.Close(); err != nil {
		log.Error().Err(err).Msg("analytics close error")
	}
	if rc, ok := a.cache.(*services.RedisEventCache); ok {
		if err := rc.Close(); err != nil {
			log.Error().Err(err).Msg("redis close error")
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}
