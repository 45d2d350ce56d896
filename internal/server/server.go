package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/rickgao/market-sync/internal/market"
	"github.com/rickgao/market-sync/internal/metrics"
	"github.com/rickgao/market-sync/internal/model"
	"github.com/rickgao/market-sync/internal/scheduler"
)

// SnapshotReader serves the tiered read path.
type SnapshotReader interface {
	GetSnapshot(ctx context.Context) (model.Snapshot, model.Source)
	GetMovers(ctx context.Context, n int) market.Movers
}

// Trigger runs manual ticks and reports scheduler state.
type Trigger interface {
	RunNow(ctx context.Context) (scheduler.Result, error)
	Status() model.SchedulerStatus
}

// Stream is the websocket endpoint.
type Stream interface {
	http.Handler
	Count() int
}

// Pinger is a dependency checked by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds listener and routing settings.
type Config struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	SyncTimeout    time.Duration // bound on the manual sync route; 0 leaves WriteTimeout in force
	MetricsEnabled bool
	MetricsPath    string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		SyncTimeout:    60 * time.Second,
		MetricsEnabled: true,
		MetricsPath:    "/metrics",
	}
}

type check struct {
	name   string
	pinger Pinger
}

// Option configures a Server.
type Option func(*Server)

// WithCheck adds a named dependency to the health report.
func WithCheck(name string, p Pinger) Option {
	return func(s *Server) {
		s.checks = append(s.checks, check{name: name, pinger: p})
	}
}

// WithStream mounts the websocket endpoint.
func WithStream(st Stream) Option {
	return func(s *Server) {
		s.stream = st
	}
}

// Server is the HTTP API.
type Server struct {
	cfg     Config
	market  SnapshotReader
	trigger Trigger
	stream  Stream
	checks  []check
	logger  *slog.Logger

	router     *mux.Router
	httpServer *http.Server
}

// New creates a server and registers its routes.
func New(cfg Config, reader SnapshotReader, trigger Trigger, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		market:  reader,
		trigger: trigger,
		logger:  logger.With("component", "server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()
	s.router.Use(s.instrument)
	s.router.Use(s.recoverPanics)

	api := s.router.PathPrefix("/api/v1/market").Subrouter()
	api.HandleFunc("/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/movers", s.handleMovers).Methods(http.MethodGet)
	api.HandleFunc("/sync", s.handleSync).Methods(http.MethodPost)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	if s.cfg.MetricsEnabled {
		s.router.Handle(s.cfg.MetricsPath, metrics.Handler()).Methods(http.MethodGet)
	}
	if s.stream != nil {
		s.router.Handle("/ws/market", s.stream).Methods(http.MethodGet)
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens until Stop is called. It returns nil after a graceful stop.
func (s *Server) Start() error {
	s.logger.Info("starting http server", "port", s.cfg.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping http server")
	return s.httpServer.Shutdown(ctx)
}
