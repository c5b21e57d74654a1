// Package server hosts the HTTP API in front of the scheduling and
// execution machinery.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/halvard/coxswain/internal/config"
	"github.com/halvard/coxswain/internal/database"
	"github.com/halvard/coxswain/internal/executions"
	"github.com/halvard/coxswain/internal/realtime"
	"github.com/halvard/coxswain/internal/scheduler"
)

// Server wires the HTTP API over the schedule store, status service and
// realtime broker. It owns the broker's lifecycle; the poller and supervisor
// are owned by the caller.
type Server struct {
	cfg        *config.Config
	db         *database.DB
	schedules  *scheduler.Store
	status     *executions.StatusService
	runner     *executions.Runner
	supervisor *executions.Supervisor
	broker     *realtime.Broker
	version    string
	httpServer *http.Server
	router     *Router
}

type Option func(*Server)

// WithVersion sets the version string reported by the health endpoint.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// New creates a server. The broker may be nil when realtime is disabled.
func New(cfg *config.Config, db *database.DB, schedules *scheduler.Store, status *executions.StatusService, runner *executions.Runner, supervisor *executions.Supervisor, broker *realtime.Broker, opts ...Option) *Server {
	srv := &Server{
		cfg:        cfg,
		db:         db,
		schedules:  schedules,
		status:     status,
		runner:     runner,
		supervisor: supervisor,
		broker:     broker,
		version:    "dev",
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.router = NewRouter(srv)
	srv.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      srv.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return srv
}

// Start serves HTTP until Shutdown is called. Blocks.
func (s *Server) Start(ctx context.Context) error {
	log.Info().
		Str("addr", s.cfg.Server.Address()).
		Msg("Starting server")

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and disconnects realtime clients.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down server")

	if s.broker != nil {
		s.broker.Stop()
		log.Info().Msg("Realtime broker stopped")
	}

	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routed handler stack, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) DB() *database.DB {
	return s.db
}

func (s *Server) Config() *config.Config {
	return s.cfg
}

func (s *Server) Schedules() *scheduler.Store {
	return s.schedules
}

func (s *Server) Status() *executions.StatusService {
	return s.status
}

func (s *Server) Runner() *executions.Runner {
	return s.runner
}

func (s *Server) Supervisor() *executions.Supervisor {
	return s.supervisor
}

func (s *Server) Broker() *realtime.Broker {
	return s.broker
}
