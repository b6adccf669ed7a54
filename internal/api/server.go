// Package api serves the hub's two HTTP listeners.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/pihub/pihub/internal/models"
	"github.com/pihub/pihub/internal/services/cec"
	"github.com/pihub/pihub/internal/services/history"
	"github.com/pihub/pihub/internal/services/probe"
	"github.com/pihub/pihub/internal/services/registry"
	"github.com/pihub/pihub/internal/services/ssh"
	"github.com/pihub/pihub/internal/services/wol"
)

// EnvHTTPLog enables per-request logging on both listeners when set.
const EnvHTTPLog = "PIHUB_HTTP_LOG"

// DefaultIdentityHeader is the trusted-identity header injected by the
// upstream tunnel proxy. Its presence is the sole authorization signal.
const DefaultIdentityHeader = "Tailscale-User-Login"

const shutdownGrace = 5 * time.Second

// Options holds everything the server needs. The two listeners share all
// service instances; there is no per-listener state.
type Options struct {
	Listeners      models.ListenerConfig
	IdentityHeader string
	Registry       registry.Service
	WOL            wol.Service
	History        history.Service
	CEC            cec.Service
	Probe          probe.Service
	SSH            ssh.Service
	Logger         zerolog.Logger
}

// Server runs the dual-listener HTTP frontend: a loopback listener reached
// through the identity tunnel for WoL operations, and a LAN-facing listener
// for TV control.
type Server struct {
	registry registry.Service
	wol      wol.Service
	history  history.Service
	cec      cec.Service
	probe    probe.Service
	ssh      ssh.Service

	identityHeader string
	logger         zerolog.Logger

	tunnel *http.Server
	lan    *http.Server
}

// NewServer creates the frontend with both routers wired but nothing bound.
func NewServer(opts Options) *Server {
	s := &Server{
		registry:       opts.Registry,
		wol:            opts.WOL,
		history:        opts.History,
		cec:            opts.CEC,
		probe:          opts.Probe,
		ssh:            opts.SSH,
		identityHeader: opts.IdentityHeader,
		logger:         opts.Logger,
	}
	if s.identityHeader == "" {
		s.identityHeader = DefaultIdentityHeader
	}

	s.tunnel = newHTTPServer(opts.Listeners.TunnelAddr, s.tunnelRouter())
	s.lan = newHTTPServer(opts.Listeners.LANAddr, s.lanRouter())

	return s
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func (s *Server) baseMiddleware(r chi.Router) {
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if os.Getenv(EnvHTTPLog) != "" {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
}

// tunnelRouter serves WoL operations. Only the health check is reachable
// without the trusted-identity header.
func (s *Server) tunnelRouter() chi.Router {
	r := chi.NewRouter()
	s.baseMiddleware(r)
	r.Use(s.originMiddleware(listenerTunnel))

	r.Get("/wol", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.requireOrigin(OriginTunnelAuthenticated))
		r.Post("/wol", s.handleWake)
		r.Get("/wol/last-wake/{name}", s.handleLastWake)
		r.Get("/wol/status/{name}", s.handleTargetStatus)
		r.Post("/wol/shutdown", s.handleShutdown)
	})

	return r
}

// lanRouter serves TV control. Requests carrying the identity header on
// this listener are rejected by the gate.
func (s *Server) lanRouter() chi.Router {
	r := chi.NewRouter()
	s.baseMiddleware(r)

	// Household dashboards call this listener from browsers.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Use(s.originMiddleware(listenerLAN))

	r.Group(func(r chi.Router) {
		r.Use(s.requireOrigin(OriginLAN))
		r.Get("/tv/status", s.handleTVStatus)
		r.Post("/tv/on", s.handleTVOn)
		r.Post("/tv/off", s.handleTVOff)
	})

	return r
}

// TunnelHandler exposes the tunnel router (for tests).
func (s *Server) TunnelHandler() http.Handler {
	return s.tunnel.Handler
}

// LANHandler exposes the LAN router (for tests).
func (s *Server) LANHandler() http.Handler {
	return s.lan.Handler
}

// Run binds both listeners and blocks until ctx is cancelled or a listener
// fails. A bind failure on either address is fatal.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 2)

	go s.listen(s.tunnel, "tunnel", errChan)
	go s.listen(s.lan, "lan", errChan)

	select {
	case err := <-errChan:
		s.shutdown()
		return err
	case <-ctx.Done():
		s.shutdown()
		return nil
	}
}

func (s *Server) listen(srv *http.Server, name string, errChan chan<- error) {
	s.logger.Info().Str("listener", name).Str("addr", srv.Addr).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errChan <- fmt.Errorf("%s listener on %s: %w", name, srv.Addr, err)
	}
}

func (s *Server) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := s.tunnel.Shutdown(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("tunnel listener shutdown")
	}
	if err := s.lan.Shutdown(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("lan listener shutdown")
	}
}
