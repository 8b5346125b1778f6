package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fleet-dashboard/internal/database"
	"fleet-dashboard/internal/models"
	"fleet-dashboard/internal/services"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Asker answers natural-language questions about the fleet.
type Asker interface {
	Ask(ctx context.Context, question string) models.AgentResponse
}

// Broker reports the state of the message broker connection.
type Broker interface {
	IsConnected() bool
}

// Config holds HTTP server settings
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	SessionTTL      time.Duration
	SweepInterval   time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ShutdownTimeout: 10 * time.Second,
		SessionTTL:      12 * time.Hour,
		SweepInterval:   10 * time.Minute,
	}
}

// Deps are the services the HTTP surface exposes.
type Deps struct {
	Warehouse     database.Warehouse
	CommandCenter *services.CommandCenterService
	Fleet         *services.FleetService
	Hypothesis    *services.HypothesisService
	Refresh       *services.RefreshService
	// Agent may be nil when no model is configured
	Agent Asker
	// Broker is nil when MQTT is disabled
	Broker Broker
}

// Server serves the three dashboards as JSON over HTTP.
type Server struct {
	echo     *echo.Echo
	cfg      Config
	deps     Deps
	sessions *Sessions
	log      zerolog.Logger
}

func New(cfg Config, deps Deps, log zerolog.Logger) *Server {
	log = log.With().Str("component", "http").Logger()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(Recovery(log))
	e.Use(RequestID())
	e.Use(Logger(log))

	s := &Server{
		echo:     e,
		cfg:      cfg,
		deps:     deps,
		sessions: NewSessions(cfg.SessionTTL, log),
		log:      log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/health", s.health)

	api := s.echo.Group("/api/v1")
	api.GET("/state", s.state)
	api.POST("/events", s.event)
	api.POST("/refresh", s.refresh)

	api.GET("/command-center", s.commandCenter)
	api.GET("/fleet", s.fleet)
	api.GET("/hypothesis", s.hypothesis)
	api.GET("/hypothesis/providers.csv", s.exportProviders)

	api.GET("/agent/suggestions", s.suggestions)
	api.POST("/agent/ask", s.ask)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Sessions() *Sessions {
	return s.sessions
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("starting server")
		if err := s.echo.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go s.sessions.Start(sweepCtx, s.cfg.SweepInterval)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to serve HTTP: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	s.log.Info().Msg("server stopped")
	return nil
}
