package api

import (
	"context"
	"net"
	"net/http"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
)

// Server runs the HTTP listener as a service.
type Server struct {
	services.Service

	cfg Config
	log log.Logger

	srv      *http.Server
	listener net.Listener
}

func NewServer(cfg Config, handler http.Handler, logger log.Logger) *Server {
	s := &Server{
		cfg: cfg,
		log: log.With(logger, "service", "server"),
		srv: &http.Server{
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}

	s.Service = services.NewBasicService(s.starting, s.running, s.stopping)

	return s
}

// Addr is the bound address, known once the service is running.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) starting(_ context.Context) error {
	l, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return errors.Wrap(err, "server listen")
	}
	s.listener = l

	_ = level.Info(s.log).Log("msg", "server listening", "addr", l.Addr().String())
	return nil
}

func (s *Server) running(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.srv.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server serve")
	}
}

func (s *Server) stopping(_ error) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		_ = level.Warn(s.log).Log("msg", "server shutdown", "err", err)
		return errors.Wrap(err, "server shutdown")
	}
	return nil
}
