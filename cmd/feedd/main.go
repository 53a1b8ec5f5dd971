// feedd is the One Capital price feed daemon: it holds the dashboard's
// WebSocket subscription, maintains the live price cache, serves it over
// HTTP, and optionally persists price history to Postgres and the latest
// entries to Redis.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/one-capital/pricefeed/internal/api"
	"github.com/one-capital/pricefeed/internal/config"
	"github.com/one-capital/pricefeed/internal/connection"
	"github.com/one-capital/pricefeed/internal/database"
	"github.com/one-capital/pricefeed/internal/prices"
	"github.com/one-capital/pricefeed/internal/server"
	"github.com/one-capital/pricefeed/internal/store"
	"github.com/one-capital/pricefeed/internal/version"
	"github.com/one-capital/pricefeed/internal/writer"

	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", "configs/feedd.local.yaml", "path to config file")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	godotenv.Load()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting feedd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.Instance.ID == "" {
		cfg.Instance.ID = uuid.NewString()
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"api_url", cfg.API.RestURL,
		"ws_url", cfg.API.WSURL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	pingers := map[string]server.Pinger{}
	var targets store.Multi

	// Optional price history persistence
	var priceWriter *writer.PriceWriter
	if cfg.Database.Enabled() {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)

		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		pingers["database"] = pool

		priceWriter = writer.NewPriceWriter(writer.WriterConfig{
			BatchSize:     cfg.Writer.BatchSize,
			FlushInterval: cfg.Writer.FlushInterval,
			BufferSize:    cfg.Writer.BufferSize,
		}, pool, logger)

		if err := priceWriter.Start(ctx); err != nil {
			logger.Error("failed to start price writer", "error", err)
			os.Exit(1)
		}
		targets = append(targets, priceWriter)

		logger.Info("database connected")
	}

	// Optional latest-price store
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		latest := store.NewRedisStore(rdb, cfg.Redis.TTL, logger)
		if err := latest.Ping(ctx); err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		pingers["redis"] = latest
		targets = append(targets, latest)

		logger.Info("redis connected", "addr", cfg.Redis.Addr)
	}

	// Create API client
	apiClient := api.NewClient(
		cfg.API.RestURL,
		cfg.API.AuthToken,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	// Create Connection Manager
	connMgr := connection.NewManager(connection.ManagerConfig{
		URL:                  cfg.API.WSURL,
		AuthToken:            cfg.API.AuthToken,
		Channels:             cfg.Connection.Channels,
		VaultID:              cfg.Connection.VaultID,
		BaseInterval:         cfg.Connection.ReconnectBaseDelay,
		BackoffMultiplier:    cfg.Connection.BackoffMultiplier,
		MaxInterval:          cfg.Connection.ReconnectMaxDelay,
		MaxReconnectAttempts: cfg.Connection.MaxReconnectAttempts,
		MessageBufferSize:    cfg.Connection.BufferSize,
		PingInterval:         cfg.Connection.PingInterval,
		PingTimeout:          cfg.Connection.PingTimeout,
		WriteTimeout:         cfg.Connection.WriteTimeout,
	}, logger)

	// Create Price Consumer
	var consumerStore prices.Store
	if len(targets) > 0 {
		consumerStore = targets
	}
	consumer := prices.New(prices.Config{
		Channel:      cfg.Consumer.Channel,
		PollInterval: cfg.Consumer.PollInterval,
		CacheTTL:     cfg.Consumer.CacheTTL,
		FetchTimeout: cfg.Consumer.FetchTimeout,
	}, nil, apiClient.GetPrices, connMgr, consumerStore, logger)

	// Start Connection Manager, then the consumer reading its stream
	if err := connMgr.Start(ctx); err != nil {
		logger.Error("failed to start connection manager", "error", err)
		os.Exit(1)
	}
	if err := consumer.Start(ctx); err != nil {
		logger.Error("failed to start price consumer", "error", err)
		os.Exit(1)
	}

	// Status HTTP server
	statusServer := &http.Server{
		Addr:    server.ListenAddr(cfg.Server.Port),
		Handler: server.New(consumer, connMgr, pingers, logger).Handler(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting status server", "port", cfg.Server.Port)
		if err := statusServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return statusServer.Shutdown(shutdownCtx)
	})

	logger.Info("feedd running",
		"instance_id", cfg.Instance.ID,
		"channels", cfg.Connection.Channels,
		"status_port", cfg.Server.Port,
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the consumer before the manager so the message stream drains first.
	consumer.Stop(shutdownCtx)
	connMgr.Stop(shutdownCtx)
	if priceWriter != nil {
		priceWriter.Stop(shutdownCtx)
	}

	if err := g.Wait(); err != nil {
		logger.Error("status server error", "error", err)
	}

	logger.Info("feedd stopped")
}
