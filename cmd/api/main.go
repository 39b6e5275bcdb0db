package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oakwellhealth/scheduling-platform/internal/api/router"
	"github.com/oakwellhealth/scheduling-platform/internal/app/bootstrap"
	"github.com/oakwellhealth/scheduling-platform/internal/clinicpolicy"
	appconfig "github.com/oakwellhealth/scheduling-platform/internal/config"
	"github.com/oakwellhealth/scheduling-platform/internal/http/handlers"
	"github.com/oakwellhealth/scheduling-platform/internal/observability/metrics"
	"github.com/oakwellhealth/scheduling-platform/internal/scheduling"
	"github.com/oakwellhealth/scheduling-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting scheduling-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := bootstrap.BuildPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		logger.Error("redis is required for the clinic policy store")
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	policyStore := clinicpolicy.NewStore(redisClient).WithFallback(scheduling.AvailabilityPolicy{
		MinAdvanceMinutes: cfg.DefaultMinAdvanceMinutes,
		MaxAdvanceDays:    cfg.DefaultMaxAdvanceDays,
	})

	registry := prometheus.NewRegistry()
	schedulingMetrics := metrics.NewSchedulingMetrics(registry)

	publisher, outboxStore := bootstrap.BuildPublisher(pool)
	deliverer, err := bootstrap.BuildDeliverer(ctx, cfg, outboxStore, logger)
	if err != nil {
		logger.Error("failed to wire event delivery", "error", err)
		os.Exit(1)
	}
	if deliverer != nil {
		go deliverer.Start(ctx)
	} else {
		logger.Warn("no scheduling queue configured; outbox events will accumulate")
	}

	service := scheduling.NewService(
		scheduling.NewPostgresHoldRepository(pool),
		scheduling.NewPostgresBookingRepository(pool),
		scheduling.NewPostgresRecurrenceRepository(pool),
		policyStore,
		publisher,
		logger,
		schedulingMetrics,
	)

	routerCfg := &router.Config{
		Logger:             logger,
		Scheduling:         handlers.NewSchedulingHandler(service, logger),
		Policy:             handlers.NewPolicyHandler(policyStore, logger),
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
		AdminJWTSecret:     cfg.AdminJWTSecret,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
