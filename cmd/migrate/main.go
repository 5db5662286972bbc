package main

import (
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

	if err := database.Migrate(cfg.Database.Driver, cfg.Database.DSN()); err != nil {
		logger.Fatalf("Migration failed: %v", err)
	}
}
