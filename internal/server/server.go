// Package server is the single HTTP entry point for the gateway: it routes
// the configured endpoint path to the active transport, answers health
// checks, and applies the uniform middleware chain.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bobmcallan/vire-gateway/internal/common"
	"github.com/bobmcallan/vire-gateway/internal/config"
)

// Server manages the HTTP listener and routes.
type Server struct {
	cfg      *config.Config
	endpoint http.Handler
	router   *http.ServeMux
	server   *http.Server
	logger   *common.Logger
}

// New creates the HTTP server, mounting the given transport handler on the
// configured endpoint path. The transport is selected once at startup; SSE
// and streamable HTTP are never both active on the same path.
func New(cfg *config.Config, endpoint http.Handler, logger *common.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		endpoint: endpoint,
		logger:   logger,
	}

	s.router = s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.withMiddleware(s.router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE streams and long tool calls stay open indefinitely
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Start starts the HTTP server. A bind failure is fatal to startup; there
// is no partial-transport degraded mode.
func (s *Server) Start() error {
	s.logger.Info().
		Str("address", s.server.Addr).
		Str("endpoint", s.cfg.Server.Endpoint).
		Str("transport", s.cfg.Server.Transport).
		Msg("HTTP server starting")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health check — answers unconditionally
	mux.HandleFunc("/ping", s.handlePing)

	// Tool protocol endpoint (JSON-RPC over the active transport)
	mux.Handle(s.cfg.Server.Endpoint, s.endpoint)

	// Everything else is a generic not-found
	mux.HandleFunc("/", s.handleNotFound)

	return mux
}

// handlePing returns a static success body for liveness probes.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

// handleNotFound returns a JSON 404 for unmatched routes.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"error":"Not Found","message":"The requested endpoint does not exist"}`))
}
