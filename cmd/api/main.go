package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"strapisync/internal/api"
	"strapisync/internal/api/handlers"
	"strapisync/internal/app"
	"strapisync/internal/config"
	"strapisync/internal/logger"
	"strapisync/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logger
	logger := logger.NewWithFormat(cfg.LogLevel, cfg.LogFormat).Named("api")
	defer logger.Sync()

	// Initialize database, guard and sync engine
	services, err := app.Build(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize services: %v", err)
	}
	defer services.Close()

	var publisher handlers.Publisher
	if cfg.KafkaEnabled() {
		p := worker.NewPublisher(cfg)
		defer p.Close()
		publisher = p
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Provision accounts in the background so the API is reachable while
	// the remote comes up. A failure turns /health degraded until
	// POST /api/v1/sync/bootstrap succeeds.
	go func() {
		if err := services.Bootstrap(ctx, cfg, logger); err != nil {
			logger.Error("Bootstrap failed: %v", err)
		}
	}()

	// Initialize API server
	server := api.New(cfg, logger, api.Dependencies{
		Engine:    services.Engine,
		Guard:     services.Guard,
		Health:    services.Client.Health,
		Bootstrap: services.Engine,
		Publisher: publisher,
	})

	// Start server
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed: %v", err)
	}
}
