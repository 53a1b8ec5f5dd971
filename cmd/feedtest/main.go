// feedtest connects to the dashboard WebSocket and streams decoded price
// updates to the console.
// Usage: go run ./cmd/feedtest --config configs/feedd.local.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	json "github.com/goccy/go-json"

	"github.com/one-capital/pricefeed/internal/config"
	"github.com/one-capital/pricefeed/internal/connection"
	"github.com/one-capital/pricefeed/internal/prices"
)

func main() {
	configPath := flag.String("config", "configs/feedd.example.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print full message JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// Load config
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	// Create Connection Manager
	connMgr := connection.NewManager(connection.ManagerConfig{
		URL:               cfg.API.WSURL,
		AuthToken:         cfg.API.AuthToken,
		Channels:          cfg.Connection.Channels,
		VaultID:           cfg.Connection.VaultID,
		BaseInterval:      cfg.Connection.ReconnectBaseDelay,
		BackoffMultiplier: cfg.Connection.BackoffMultiplier,
		MaxInterval:       cfg.Connection.ReconnectMaxDelay,
	}, logger)

	logger.Info("starting connection manager", "url", cfg.API.WSURL)
	if err := connMgr.Start(ctx); err != nil {
		logger.Error("failed to start connection manager", "error", err)
		os.Exit(1)
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := connMgr.Stats()
				logger.Info("stats",
					"state", stats.State,
					"attempt", stats.ReconnectAttempt,
					"last_delay", stats.LastDelay,
					"last_error", stats.LastError,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			connMgr.Stop(shutdownCtx)
			shutdownCancel()
			logger.Info("shutdown complete")
			return

		case msg, ok := <-connMgr.Messages():
			if !ok {
				return
			}
			printMessage(msg, *verbose)
		}
	}
}

func printMessage(msg connection.Message, verbose bool) {
	if verbose {
		data, _ := json.MarshalIndent(msg, "", "  ")
		fmt.Printf("[%s] %s\n", msg.Type, data)
		return
	}

	if msg.Type != connection.TypeUpdate {
		fmt.Printf("[%s] channel=%s\n", msg.Type, msg.Channel)
		return
	}

	update, err := prices.DecodeUpdate(msg.Data)
	if err != nil {
		fmt.Printf("[update] undecodable: %v\n", err)
		return
	}

	switch u := update.(type) {
	case prices.FullUpdate:
		fmt.Printf("[FULL] %d symbols\n", len(u.Prices))
		for symbol, entry := range u.Prices {
			fmt.Printf("  %s current=%s change24h=%s (%s%%)\n",
				symbol, entry.Current, entry.Change24h, entry.ChangePercentage24h)
		}

	case prices.PatchUpdate:
		current := "-"
		if u.Patch.Current != nil {
			current = u.Patch.Current.String()
		}
		fmt.Printf("[PATCH] symbol=%s current=%s\n", u.Symbol, current)
	}
}
