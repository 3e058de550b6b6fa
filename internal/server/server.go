// Package server exposes placeholder detection and the service's operational
// endpoints over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/straja-ai/placeholder/internal/auth"
	"github.com/straja-ai/placeholder/internal/config"
	"github.com/straja-ai/placeholder/internal/detection"
	"github.com/straja-ai/placeholder/internal/logging"
	"github.com/straja-ai/placeholder/internal/telemetry"
)

const serviceName = "placeholderd"

// Deps are the collaborators a Server needs. Service is required.
type Deps struct {
	Service   *detection.Service
	Auth      *auth.Auth
	Logs      *logging.MemoryHandler
	Telemetry *telemetry.Provider
	Logger    *slog.Logger
	Version   string
}

// Server wires the HTTP routes for placeholderd.
type Server struct {
	mux     *http.ServeMux
	cfg     config.ServerConfig
	prefix  string
	svc     *detection.Service
	auth    *auth.Auth
	logs    *logging.MemoryHandler
	tel     *telemetry.Provider
	logger  *slog.Logger
	store   *requestStore
	limiter *clientLimiter
	version string
	started time.Time
}

// New registers every route.
func New(cfg config.ServerConfig, deps Deps) (*Server, error) {
	if deps.Service == nil {
		return nil, errors.New("server: detection service is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	if deps.Logs == nil {
		deps.Logs = logging.NewMemoryHandler(1, nil)
	}

	s := &Server{
		mux:     http.NewServeMux(),
		cfg:     cfg,
		prefix:  strings.TrimRight(cfg.APIPrefix, "/"),
		svc:     deps.Service,
		auth:    deps.Auth,
		logs:    deps.Logs,
		tel:     deps.Telemetry,
		logger:  logger.With("component", "server"),
		store:   newRequestStore(cfg.ResultTTL),
		limiter: newClientLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		version: version,
		started: time.Now(),
	}

	protected := func(h http.HandlerFunc) http.Handler {
		return s.withAuth(s.withRateLimit(h))
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/", s.handleWelcome)
	s.mux.HandleFunc(s.prefix+"/health", s.handleHealth)
	s.mux.HandleFunc(s.prefix+"/logs/levels", s.handleLogLevels)
	s.mux.Handle(s.prefix+"/detect-company-name", protected(s.handleDetect))
	s.mux.Handle(s.prefix+"/detections/{id}", protected(s.handleDetectionStatus))
	s.mux.Handle(s.prefix+"/status", protected(s.handleStatus))
	s.mux.Handle(s.prefix+"/logs", protected(s.handleLogs))

	return s, nil
}

// Handler returns the full middleware chain around the routes.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = s.withRecover(h)
	h = withRequestID(h)
	return s.tel.HTTPHandler(h, serviceName)
}

// Run listens on the configured address until ctx ends, then shuts down
// gracefully within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("placeholderd listening", "addr", ln.Addr().String(), "api_prefix", s.prefix)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.logger.Info("shutting down", "timeout", timeout.String())
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
