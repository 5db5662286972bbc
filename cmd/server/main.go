package main

import (
	"context"
	"os/signal"
	"syscall"

	"weatheretl/internal/config"
	"weatheretl/internal/database"
	"weatheretl/internal/logger"
	"weatheretl/internal/server"
)

func main() {
	if _, err := config.Load(config.Path()); err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.Get()
	logger.SetLogLevel(cfg.LogLevel)

	db, err := database.NewDB(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := server.NewServer(db)
	if err := httpServer.Start(ctx, cfg.Server.Addr); err != nil {
		db.Close()
		logger.Fatalf("Server stopped: %v", err)
	}
	logger.Infof("Server shut down")
}
