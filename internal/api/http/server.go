package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"dexanalytics/internal/config"

	"gitlab.com/nevasik7/alerting/logger"
)

const (
	defaultAddr         = ":8080"
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 15 * time.Second
	defaultIdleTimeout  = 60 * time.Second
)

type Server struct {
	log logger.Logger
	srv *http.Server
}

func NewServer(log logger.Logger, cfg *config.HTTPConfig, handler http.Handler) (*Server, error) {
	if handler == nil {
		return nil, errors.New("http handler is required")
	}

	c := config.HTTPConfig{}
	if cfg != nil {
		c = *cfg
	}
	if c.Addr == "" {
		c.Addr = defaultAddr
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = defaultIdleTimeout
	}

	return &Server{
		log: log,
		srv: &http.Server{
			Addr:              c.Addr,
			Handler:           handler,
			ReadTimeout:       c.ReadTimeout,
			ReadHeaderTimeout: c.ReadTimeout,
			WriteTimeout:      c.WriteTimeout,
			IdleTimeout:       c.IdleTimeout,
		},
	}, nil
}

func (s *Server) Addr() string { return s.srv.Addr }

// Serve blocks until Shutdown; the listener is taken over by the server
func (s *Server) Serve(ln net.Listener) error {
	s.log.Infof("HTTP server listening on %s", ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http serve: %w", err)
	}
	return nil
}

func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.log.Infof("HTTP server stopped")
	return nil
}
