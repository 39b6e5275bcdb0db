package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/oakwellhealth/scheduling-platform/internal/app/bootstrap"
	appconfig "github.com/oakwellhealth/scheduling-platform/internal/config"
	"github.com/oakwellhealth/scheduling-platform/internal/observability/metrics"
	"github.com/oakwellhealth/scheduling-platform/internal/scheduling"
	"github.com/oakwellhealth/scheduling-platform/internal/sweeper"
	"github.com/oakwellhealth/scheduling-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting hold TTL sweeper", "interval", cfg.SweepInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := bootstrap.BuildPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	registry := prometheus.NewRegistry()
	schedulingMetrics := metrics.NewSchedulingMetrics(registry)

	sw := sweeper.New(
		scheduling.NewPostgresHoldRepository(pool),
		sweeper.NewPGTenantSource(pool),
		logger,
		schedulingMetrics,
	).WithInterval(cfg.SweepInterval).WithBatchSize(int32(cfg.SweepBatchSize))

	sw.Start(ctx)
	logger.Info("sweeper stopped")
}
