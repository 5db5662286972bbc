package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"weatheretl/internal/api"
	"weatheretl/internal/config"
	"weatheretl/internal/database"
	"weatheretl/internal/logger"
	"weatheretl/internal/pipeline"
	"weatheretl/internal/scheduler"
	"weatheretl/internal/stream"
	"weatheretl/internal/transform"
)

func main() {
	if _, err := config.Load(config.Path()); err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.Get()
	logger.SetLogLevel(cfg.LogLevel)

	if err := cfg.ValidateForETL(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(cfg.Database.Driver, cfg.Database.DSN()); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	db, err := database.NewDB(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	runner := pipeline.NewRunner(api.NewOpenWeatherClient(cfg.Provider), transform.NewTransformer(), db, cfg.ETL)

	if cfg.ETL.MetricsAddr != "" {
		go serveMetrics(cfg.ETL.MetricsAddr, runner.HealthHandler(db))
	}

	if cfg.Redis.Enabled() {
		publisher, err := stream.NewRedisPublisher(ctx, cfg.Redis)
		if err != nil {
			logger.Warnf("Publishing disabled: %v", err)
		} else {
			defer publisher.Close()
			runner.SetPublisher(publisher)
			logger.Infof("Publishing readings to Redis stream %s", cfg.Redis.Stream)
		}
	}

	sched := scheduler.New(cfg.ETL.Mode, scheduler.NewTrigger(cfg.ETL), func(ctx context.Context) error {
		summary, err := runner.Run(ctx)
		if err != nil {
			return err
		}
		for _, f := range summary.Failures() {
			logger.Warnf("  %s: %v", f.City, f.Err)
		}
		return nil
	})

	logger.Infof("ETL starting in %s mode for %v", cfg.ETL.Mode, cfg.ETL.Cities)

	if err := sched.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Infof("ETL interrupted")
			return
		}
		logger.Errorf("ETL failed: %v", err)
		db.Close()
		os.Exit(1)
	}

	logger.Infof("ETL stopped")
}

// serveMetrics exposes Prometheus metrics and the pipeline health check.
func serveMetrics(addr string, health http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/health", health)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Infof("Serving metrics and health on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("Metrics server stopped: %v", err)
	}
}
