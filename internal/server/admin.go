// Package server provides the gateway's admin HTTP endpoint.
//
// MCP traffic runs over stdio; this sidecar HTTP server only serves
// operational surfaces: health, Prometheus metrics and cache statistics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/nwardt/stathub-mcp/pkg/cache"
	"github.com/nwardt/stathub-mcp/pkg/logging"
)

// StatsSource reports cache statistics. *stathub.Service satisfies it.
type StatsSource interface {
	CacheStats() cache.Stats
}

// Admin is the operational HTTP server.
type Admin struct {
	Router *chi.Mux

	stats  StatsSource
	logger zerolog.Logger
	srv    *http.Server
}

// NewAdmin builds the admin server and its routes.
func NewAdmin(addr string, stats StatsSource) *Admin {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	a := &Admin{
		Router: r,
		stats:  stats,
		logger: logging.NewLogger("admin"),
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	r.Get("/healthz", a.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/cache/stats", a.handleCacheStats)

	return a
}

func (a *Admin) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (a *Admin) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(a.stats.CacheStats()); err != nil {
		a.logger.Error().Err(err).Msg("Failed to write cache stats")
	}
}

// ListenAndServe runs the admin server until Shutdown is called.
// http.ErrServerClosed is swallowed, any other error is returned.
func (a *Admin) ListenAndServe() error {
	a.logger.Info().Str("addr", a.srv.Addr).Msg("Starting admin server")
	if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the admin server gracefully.
func (a *Admin) Shutdown(ctx context.Context) error {
	return a.srv.Shutdown(ctx)
}
