// Package api is the reference HTTP backend for pinmap: the /health probe
// and the /api/locations CRUD routes the sync client replays against.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/marcus/pinmap/internal/serverdb"
)

// Server is the HTTP API server for pinmap-api.
type Server struct {
	config      Config
	http        *http.Server
	store       *serverdb.ServerDB
	metrics     *Metrics
	rateLimiter *RateLimiter
	addr        net.Addr
	cancel      context.CancelFunc
}

// NewServer creates a new Server with the given config and store.
func NewServer(cfg Config, store *serverdb.ServerDB) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("server store is required")
	}
	s := &Server{
		config:  cfg,
		store:   store,
		metrics: NewMetrics(),
	}
	if cfg.RateLimitRPS > 0 {
		s.rateLimiter = NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Addr returns the bound listen address once Start has succeeded.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Start begins listening for HTTP requests (non-blocking).
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.addr = ln.Addr()

	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server", "err", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	if s.rateLimiter != nil {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("rate limiter cleanup panic", "panic", r)
				}
			}()
			s.rateLimiter.Run(ctx, time.Minute)
		}()
	}

	return nil
}

// Shutdown gracefully stops the server. The store is owned by the caller.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	return s.http.Shutdown(ctx)
}

// routes builds the HTTP handler with all routes and middleware.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health & metrics
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	// Locations
	mux.HandleFunc("GET /api/locations", s.handleListLocations)
	mux.HandleFunc("POST /api/locations", s.handleCreateLocation)
	mux.HandleFunc("GET /api/locations/geojson", s.handleExportGeoJSON)
	mux.HandleFunc("GET /api/locations/{id}", s.handleGetLocation)
	mux.HandleFunc("PUT /api/locations/{id}", s.handleUpdateLocation)
	mux.HandleFunc("DELETE /api/locations/{id}", s.handleDeleteLocation)

	return chain(mux,
		recoveryMiddleware,
		requestIDMiddleware,
		loggerMiddleware,
		corsMiddleware(s.config.CORSAllowedOrigins),
		metricsMiddleware(s.metrics),
		loggingMiddleware,
		rateLimitMiddleware(s.rateLimiter, s.metrics),
		maxBytesMiddleware(1<<20),
	)
}

// handleHealth returns a health check response, pinging the server DB.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		logFor(r.Context()).Error("health ping", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "detail": "db unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
