package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vanish-leaderboard/internal/config"
	"github.com/vanish-leaderboard/internal/handler"
	"github.com/vanish-leaderboard/internal/kafka"
	"github.com/vanish-leaderboard/internal/postgres"
	"github.com/vanish-leaderboard/internal/service"
	"github.com/vanish-leaderboard/internal/store"
	"github.com/vanish-leaderboard/internal/websocket"
	"github.com/vanish-leaderboard/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the blob store. An unreachable store is fatal: there is
	// no leaderboard without it.
	logger.Info("connecting to blob store", "addr", cfg.Redis.Addr)
	blobs, err := store.NewRedisStore(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to blob store", "error", err)
		os.Exit(1)
	}
	defer blobs.Close()
	logger.Info("connected to blob store")

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize the leaderboard service
	leaderboardService := service.NewLeaderboardService(blobs, logger)
	leaderboardService.SetHub(wsHub)

	// Initialize the optional PostgreSQL archive and snapshot worker
	var snapshotWorker *worker.SnapshotWorker
	if cfg.Postgres.Enabled {
		logger.Info("connecting to PostgreSQL archive",
			"host", cfg.Postgres.Host,
			"database", cfg.Postgres.Database,
		)
		archive, err := postgres.NewArchive(&cfg.Postgres, logger)
		if err != nil {
			logger.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer archive.Close()

		if err := archive.RunMigrations(ctx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}

		leaderboardService.SetArchive(archive)

		snapshotWorker = worker.NewSnapshotWorker(blobs, archive, &cfg.Snapshot, logger)

		// Restore archived blobs missing from the store (recovery)
		if err := snapshotWorker.RestoreMissing(ctx); err != nil {
			logger.Warn("failed to restore blobs from archive", "error", err)
		}

		if cfg.Snapshot.Enabled {
			if err := snapshotWorker.Start(ctx); err != nil {
				logger.Error("failed to start snapshot worker", "error", err)
				os.Exit(1)
			}
		}
	}

	// Initialize Kafka consumer for high-volume score ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, leaderboardService, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize HTTP handler with WebSocket hub
	httpHandler := handler.NewHandler(leaderboardService, wsHub, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop snapshot worker
	if snapshotWorker != nil {
		if err := snapshotWorker.Stop(); err != nil {
			logger.Error("failed to stop snapshot worker", "error", err)
		}
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
