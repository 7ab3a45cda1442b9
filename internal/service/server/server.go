// Package server exposes health, metrics and transfer history over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/planetdl/internal/metrics"
	"github.com/vertextoedge/planetdl/internal/port"
)

// Config contains HTTP server configuration
type Config struct {
	BindAddr      string
	DebugUsername string
	DebugPassword string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		BindAddr:     "127.0.0.1:9464",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server serves operational endpoints next to running transfers
type Server struct {
	config       *Config
	journal      port.TransferJournal
	logger       *zap.Logger
	server       *http.Server
	debugHandler *DebugHandler
}

// New creates a new HTTP server. journal and m may be nil; the matching
// endpoints then report that the feature is disabled.
func New(cfg *Config, journal port.TransferJournal, m *metrics.Metrics, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config:  cfg,
		journal: journal,
		logger:  logger,
	}

	s.debugHandler = NewDebugHandler(journal, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)

	if m != nil {
		mux.Handle("/metrics", m.Handler())
	}

	// Debug endpoints
	debug := func(h http.HandlerFunc) http.HandlerFunc { return h }
	if cfg.DebugUsername != "" {
		debug = BasicAuthMiddleware(cfg.DebugUsername, cfg.DebugPassword, logger)
	}
	mux.HandleFunc("/debug/transfers", debug(s.debugHandler.HandleTransfers))
	mux.HandleFunc("/debug/stats", debug(s.debugHandler.HandleStats))

	s.server = &http.Server{
		Addr:         cfg.BindAddr,
		Handler:      LoggingMiddleware(logger)(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.journal != nil {
		if err := s.journal.Ping(); err != nil {
			s.logger.Error("health check failed", zap.Error(err))
			http.Error(w, "Journal unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"healthy","time":"` + time.Now().Format(time.RFC3339) + `"}`))
}
