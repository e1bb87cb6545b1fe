// Package server provides a graceful http server wrapper bound to a
// context lifetime.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/liars-games/liarsdice/internal/logging"
)

// Server binds a listener eagerly so port collisions surface at startup
// instead of on the first request.
type Server struct {
	listener net.Listener
	port     string
}

func New(port string) (*Server, error) {
	addr := fmt.Sprintf(":%s", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener on %s: %w", addr, err)
	}

	return &Server{
		listener: listener,
		port:     port,
	}, nil
}

// ServeHTTP runs srv on the bound listener until ctx is done, then drains
// it with a shutdown grace period.
func (s *Server) ServeHTTP(ctx context.Context, srv *http.Server) error {
	logger := logging.FromContext(ctx).Named("server.ServeHTTP")

	errCh := make(chan error, 1)
	go func() {
		<-ctx.Done()

		logger.Infof("server.Serve: shutting down")
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		errCh <- srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("listening on :%s", s.port)
	if err := srv.Serve(s.listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to serve: %w", err)
	}

	if err := <-errCh; err != nil {
		return fmt.Errorf("failed to shutdown: %w", err)
	}

	return nil
}

func (s *Server) Addr() string {
	return s.listener.Addr().String()
}
