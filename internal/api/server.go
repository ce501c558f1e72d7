package api

import (
	"context"
	"fmt"
	"io/fs"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/wstszx/LicStats/internal/collector"
	"github.com/wstszx/LicStats/internal/monitor"
	"github.com/wstszx/LicStats/web"
)

// Config holds the API server configuration.
type Config struct {
	ListenAddr     string
	CollectRate    float64 // Manual collections per minute, 0 disables the limit
	CollectBurst   int
	AllowedOrigins []string
	Frontend       fs.FS // Optional dashboard served at /
}

// Collector triggers a collection on demand.
type Collector interface {
	Collect(ctx context.Context) (collector.Result, error)
}

// Server represents the API HTTP server.
type Server struct {
	config    Config
	monitor   *monitor.Monitor
	collector Collector
	limiter   *rate.Limiter
	router    *mux.Router
	handler   http.Handler
	server    *http.Server
	listener  net.Listener // Optional pre-created listener (for systemd socket activation)
	logger    zerolog.Logger
}

// NewServer creates a new API server.
func NewServer(cfg Config, mon *monitor.Monitor, coll Collector, logger zerolog.Logger) *Server {
	s := &Server{
		config:    cfg,
		monitor:   mon,
		collector: coll,
		limiter:   newCollectLimiter(cfg.CollectRate, cfg.CollectBurst),
		router:    mux.NewRouter(),
		logger:    logger.With().Str("component", "api").Logger(),
	}

	s.setupRoutes()

	// CORS wraps the router so preflight requests are answered before
	// method matching rejects them.
	s.handler = s.router
	if len(cfg.AllowedOrigins) > 0 {
		s.handler = CORSMiddleware(cfg.AllowedOrigins)(s.router)
	}

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // covers a manual collection
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func newCollectLimiter(perMinute float64, burst int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = int(math.Max(1, math.Ceil(perMinute/60)))
	}
	return rate.NewLimiter(rate.Limit(perMinute/60), burst)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(LoggingMiddleware(s.logger))

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/licenses", s.handleLicenses).Methods("GET")
	api.HandleFunc("/logs", s.handleLogs).Methods("GET")
	api.HandleFunc("/logs/{filename}", s.handleLogContent).Methods("GET")
	api.HandleFunc("/collect", s.handleCollect).Methods("GET", "POST")
	api.HandleFunc("/users", s.handleUsers).Methods("GET")
	api.HandleFunc("/modules", s.handleModules).Methods("GET")
	api.HandleFunc("/aggregate", s.handleAggregate).Methods("GET")
	api.HandleFunc("/history", s.handleHistory).Methods("GET")

	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Unknown endpoint")
	})

	if s.config.Frontend != nil {
		s.router.PathPrefix("/").Handler(web.Handler(s.config.Frontend))
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.config.ListenAddr).Msg("Starting API server")

	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated API listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()

	return nil
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}

	return nil
}
