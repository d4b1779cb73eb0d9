// Command stathub-mcp runs the StatHub MCP gateway.
//
// The gateway speaks MCP over stdin/stdout and exposes the StatHub v3 API
// as tools an LLM agent can call. A sidecar HTTP server publishes health,
// Prometheus metrics and cache statistics.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nwardt/stathub-mcp/internal/config"
	"github.com/nwardt/stathub-mcp/internal/server"
	"github.com/nwardt/stathub-mcp/internal/tools"
	"github.com/nwardt/stathub-mcp/pkg/cache"
	"github.com/nwardt/stathub-mcp/pkg/client"
	"github.com/nwardt/stathub-mcp/pkg/logging"
	"github.com/nwardt/stathub-mcp/pkg/ratelimit"
	"github.com/nwardt/stathub-mcp/pkg/stathub"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup(logging.Config{})
		fallback := logging.NewLogger("main")
		fallback.Fatal().Err(err).Msg("Invalid configuration")
	}

	logging.Setup(logging.Config{Level: logging.Level(cfg.LogLevel), Pretty: cfg.LogPretty})
	logger := logging.NewLogger("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := ratelimit.PerSecond(cfg.RateLimit)

	apiClient, err := client.New(client.Config{
		BaseURL:   cfg.BaseURL,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
		Retry: client.RetryConfig{
			MaxRetries: cfg.MaxRetries,
			DelayBase:  cfg.RetryDelay,
		},
		Limiter: limiter,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create StatHub client")
	}

	store := cache.New(cache.Options{
		DefaultTTL:      cfg.CatalogTTL,
		JanitorInterval: cfg.JanitorInterval,
	})
	defer store.Close()

	svc := stathub.NewService(apiClient, store, stathub.Config{
		CatalogTTL:     cfg.CatalogTTL,
		ObservationTTL: cfg.ObservationTTL,
		MaxBatchSize:   cfg.MaxBatchSize,
	})

	admin := server.NewAdmin(cfg.AdminAddr, svc)
	go func() {
		if err := admin.ListenAndServe(); err != nil {
			logger.Error().Err(err).Msg("Admin server failed")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := admin.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Admin server shutdown failed")
		}
	}()

	mcpServer := mcp.NewServer(&mcp.Implementation{Name: "stathub-mcp", Version: version}, nil)
	tools.NewRegistry(svc).Register(mcpServer)

	logger.Info().
		Str("version", version).
		Str("base_url", cfg.BaseURL).
		Int("rate_limit", cfg.RateLimit).
		Str("admin_addr", cfg.AdminAddr).
		Msg("Starting StatHub MCP gateway")

	if err := mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		logger.Fatal().Err(err).Msg("Gateway terminated")
	}
	logger.Info().Msg("Gateway stopped")
}
