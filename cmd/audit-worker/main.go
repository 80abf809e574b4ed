package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/amqp"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/config"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/log"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/storage"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{
		Level:     slog.LevelInfo,
		Component: "audit-worker",
		JSON:      os.Getenv("LOG_FORMAT") == "json",
	})
	log.SetDefault(logger)

	logger.Info("Starting audit-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the audit worker")
		os.Exit(1)
	}

	sqliteRepo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer sqliteRepo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	auditWorker := worker.NewAuditWorker(sqliteRepo, cfg.AuditRetention)

	// Catch up on retention before consuming new events
	logger.Info("Performing startup retention sweep...")
	if err := auditWorker.StartupSweep(ctx); err != nil {
		logger.Error("Startup retention sweep failed", "error", err)
		// Don't exit - continue with normal operation
	}

	consumeDone := make(chan struct{})
	go func() {
		defer close(consumeDone)
		handler := func(msg *amqp.AuditEventMessage) error {
			return auditWorker.HandleAuditEvent(ctx, msg)
		}
		if err := amqpClient.ConsumeAuditEvents(ctx, handler); err != nil {
			if err != context.Canceled {
				logger.Error("Audit event consumption failed", "error", err)
			}
			cancel()
		}
	}()

	go auditWorker.RunRetentionLoop(ctx, cfg.SweepInterval)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down worker...")
	cancel()

	select {
	case <-consumeDone:
		logger.Info("Worker shutdown complete")
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached before the consumer stopped")
	}
}
