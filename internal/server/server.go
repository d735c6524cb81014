package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/350ops/walleybranch/internal/config"
)

const defaultShutdownTimeout = 10 * time.Second

// Server serves the wallet API and drains it on shutdown.
type Server struct {
	httpServer      *http.Server
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// New builds a Server listening on cfg.Host:cfg.Port.
func New(logger *slog.Logger, cfg config.HTTPConfig, handler http.Handler) *Server {
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger:          logger.With("component", "http"),
		shutdownTimeout: timeout,
	}
}

// Start listens until the server is shut down. A clean shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.httpServer.Addr,
		"read_timeout", s.httpServer.ReadTimeout.String(),
		"write_timeout", s.httpServer.WriteTimeout.String(),
	)
	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("draining connections")
	return s.httpServer.Shutdown(ctx)
}

// Run serves until ctx is done, then drains within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
