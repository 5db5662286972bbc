package main

import (
	"context"
	"flag"
	"time"

	"weatheretl/internal/config"
	"weatheretl/internal/database"
	"weatheretl/internal/logger"
)

func main() {
	if _, err := config.Load(config.Path()); err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.Get()
	logger.SetLogLevel(cfg.LogLevel)

	days := flag.Int("days", cfg.ETL.CleanupDays, "delete readings older than this many days")
	flag.Parse()
	if *days <= 0 {
		logger.Fatalf("-days must be positive, got %d", *days)
	}

	db, err := database.NewDB(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	deleted, err := db.Cleanup(ctx, *days)
	if err != nil {
		db.Close()
		logger.Fatalf("Cleanup failed: %v", err)
	}
	logger.Infof("Cleanup removed %d readings older than %d days", deleted, *days)
}
