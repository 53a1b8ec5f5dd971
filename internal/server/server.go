// Package server exposes the feed's state over HTTP: health checks, the
// current price cache in the fallback-endpoint shape, and connection status.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/one-capital/pricefeed/internal/connection"
	"github.com/one-capital/pricefeed/internal/model"
	"github.com/one-capital/pricefeed/internal/prices"
)

// PriceSource is the consumer view the server renders.
type PriceSource interface {
	Snapshot() (model.PriceMap, prices.Status)
}

// ConnSource reports connection manager state.
type ConnSource interface {
	Stats() connection.ManagerStats
}

// Pinger is a dependency that can be health-checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server serves the status endpoints.
type Server struct {
	prices  PriceSource
	conn    ConnSource
	pingers map[string]Pinger
	logger  *slog.Logger
}

// New creates a Server. pingers maps a dependency name ("database", "redis")
// to its health check; nil entries are skipped.
func New(priceSrc PriceSource, connSrc ConnSource, pingers map[string]Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		prices:  priceSrc,
		conn:    connSrc,
		pingers: pingers,
		logger:  logger,
	}
}

// Handler builds the HTTP routing table.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/prices", s.handlePrices).Methods(http.MethodGet)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	return r
}

// ListenAddr formats a port into a listen address.
func ListenAddr(port int) string {
	return fmt.Sprintf(":%d", port)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true
	for name, p := range s.pingers {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
		} else {
			checks[name] = "ok"
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, map[string]any{
		"healthy": healthy,
		"checks":  checks,
	})
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	snapshot, _ := s.prices.Snapshot()
	s.writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	_, status := s.prices.Snapshot()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"connection": s.conn.Stats(),
		"consumer":   status,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}
