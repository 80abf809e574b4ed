package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/amqp"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/cache"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/calculator"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/config"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/export"
	apphttp "github.com/17chuhai-dev/zinses-rechner-optimization/internal/http"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/log"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/monitor"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/services"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{
		Level:     slog.LevelInfo,
		Component: "zinsd",
		JSON:      os.Getenv("LOG_FORMAT") == "json",
	})
	log.SetDefault(logger)

	logger.Info("Starting zinsd")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Consent and audit storage
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Result cache backend
	var store cache.Store[calculator.Result]
	var cacheManager *cache.Manager

	switch cfg.CacheBackend {
	case "redis":
		redisStore := cache.NewRedisStore[calculator.Result](cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.CacheTTL,
		})
		if err := redisStore.Ping(context.Background()); err != nil {
			logger.Error("Failed to reach Redis", "error", err, "addr", cfg.RedisAddr)
			os.Exit(1)
		}
		defer redisStore.Close()
		store = redisStore
		logger.Info("Initialized Redis result cache", "addr", cfg.RedisAddr)
	default:
		lru := cache.NewLRUCache[calculator.Result](cfg.CacheSize, cfg.CacheTTL)
		cacheManager = cache.NewManager()
		cacheManager.Register(lru)
		cacheManager.StartCleanup(10 * time.Minute)
		store = cache.NewMemoryStore(lru)
		logger.Info("Initialized in-memory result cache", "size", cfg.CacheSize, "ttl", cfg.CacheTTL)
	}

	// AMQP audit event bus (optional; the privacy service falls back to
	// direct storage writes without it)
	var publisher services.AuditPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client, audit events will be written directly", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("Initialized AMQP audit event bus", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - audit events are written directly to storage")
	}

	engine := calculator.New(cfg.Limits())
	calcService := services.NewCalculationService(engine, store)
	privacyService := services.NewPrivacyService(repo, publisher, cfg.AuditRetention)

	// Google Sheets export target (optional)
	var sheets apphttp.SheetsExporter
	if cfg.SheetsConfigured() {
		target, err := export.NewSheetsTarget(context.Background(), export.SheetsConfig{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsFile: cfg.GoogleCredentialsFile,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets export", "error", err)
			os.Exit(1)
		}
		sheets = target
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled")
	}

	srv := apphttp.NewServer(apphttp.Deps{
		Config:  cfg,
		Calc:    calcService,
		Privacy: privacyService,
		Sheets:  sheets,
		Storage: repo,
		Metrics: monitor.New(),
		Logger:  logger.WithComponent(log.ComponentHTTP),
	})

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if cacheManager != nil {
			cacheManager.Stop()
		}
		cancel()
	}()

	logger.Info("Starting zinsd server", "port", cfg.Port, "cache_backend", cfg.CacheBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
