package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

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
	logger := logger.NewWithFormat(cfg.LogLevel, cfg.LogFormat).Named("worker")
	defer logger.Sync()

	if !cfg.KafkaEnabled() {
		logger.Fatal("KAFKA_BROKERS must be set to run the worker")
	}

	services, err := app.Build(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize services: %v", err)
	}
	defer services.Close()

	// Wait for interrupt signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize worker
	w := worker.New(cfg, logger, services.Engine)

	// Start worker
	logger.Info("Starting worker...")
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down worker...")
		w.Stop()
		err = <-done
	case err = <-done:
		w.Stop()
	}
	if err != nil {
		logger.Error("Worker stopped with error: %v", err)
	}
}
