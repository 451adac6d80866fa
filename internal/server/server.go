package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/cdpguard/internal/domain"
	"github.com/alanyoungcy/cdpguard/internal/metrics"
	"github.com/alanyoungcy/cdpguard/internal/server/handler"
	"github.com/alanyoungcy/cdpguard/internal/server/middleware"
	"github.com/alanyoungcy/cdpguard/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	APIKey          string // if empty, authentication is disabled
	RateLimitPerMin int    // if zero, rate limiting is disabled
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health       *handler.HealthHandler
	Positions    *handler.PositionHandler
	Liquidations *handler.LiquidationHandler
	Batch        *handler.BatchHandler
	Monitor      *handler.MonitorHandler
	Analytics    *handler.AnalyticsHandler
	Events       *handler.EventsHandler
	Archives     *handler.ArchiveHandler // nil when blob storage is disabled
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux.
// The health and metrics endpoints bypass auth and rate limiting; every
// /api route runs through the full middleware chain.
func NewServer(
	cfg Config,
	handlers Handlers,
	wsHub *ws.Hub,
	limiter domain.RateLimiter,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Server {
	api := http.NewServeMux()

	api.HandleFunc("POST /api/positions", handlers.Positions.Create)
	api.HandleFunc("GET /api/positions", handlers.Positions.List)
	api.HandleFunc("GET /api/positions/{id}", handlers.Positions.Get)
	api.HandleFunc("GET /api/positions/{id}/health", handlers.Positions.Health)

	api.HandleFunc("POST /api/liquidations/{id}/simulate", handlers.Liquidations.Simulate)
	api.HandleFunc("POST /api/liquidations/{id}/execute", handlers.Liquidations.Execute)
	api.HandleFunc("GET /api/liquidations", handlers.Liquidations.List)

	api.HandleFunc("POST /api/batch/positions", handlers.Batch.CreatePositions)
	api.HandleFunc("POST /api/batch/simulate", handlers.Batch.Simulate)
	api.HandleFunc("POST /api/batch/execute", handlers.Batch.Execute)

	api.HandleFunc("POST /api/monitor/start", handlers.Monitor.Start)
	api.HandleFunc("POST /api/monitor/stop", handlers.Monitor.Stop)
	api.HandleFunc("GET /api/monitor/status", handlers.Monitor.Status)

	api.HandleFunc("POST /api/analytics/snapshots/{id}", handlers.Analytics.Snapshot)
	api.HandleFunc("GET /api/analytics/snapshots/{id}", handlers.Analytics.ListSnapshots)
	api.HandleFunc("GET /api/analytics/system", handlers.Analytics.System)

	api.HandleFunc("POST /api/events/index", handlers.Events.Index)
	api.HandleFunc("GET /api/events", handlers.Events.List)

	if handlers.Archives != nil {
		api.HandleFunc("GET /api/archives", handlers.Archives.List)
		api.HandleFunc("GET /api/archives/{path...}", handlers.Archives.Download)
	}

	if wsHub != nil {
		api.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Protected chain, innermost first: auth, then rate limiting so
	// unauthenticated requests still count against the caller's budget.
	var protected http.Handler = api
	protected = middleware.Auth(cfg.APIKey)(protected)
	if limiter != nil && cfg.RateLimitPerMin > 0 {
		protected = middleware.RateLimit(limiter, cfg.RateLimitPerMin, time.Minute)(protected)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handlers.Health.HealthCheck)
	mux.Handle("GET /metrics", m.Handler())
	mux.Handle("/", protected)

	var h http.Handler = mux
	h = middleware.CORS(cfg.CORSOrigins)(h)
	h = middleware.Metrics(m)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.RequestID()(h)

	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
