package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/blef1o/tunebank/internal/app/system"
	"github.com/blef1o/tunebank/pkg/logger"
)

// Server runs the REST API as a lifecycle-managed component.
type Server struct {
	srv *http.Server
	log *logger.Logger
}

var _ system.Service = (*Server)(nil)

// NewServer wraps handler in an HTTP server bound to addr.
func NewServer(addr string, handler http.Handler, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		log: log,
	}
}

func (s *Server) Name() string { return "httpapi" }

// Start begins serving in the background. Listen errors after startup
// are logged, not returned.
func (s *Server) Start(_ context.Context) error {
	go func() {
		s.log.Infof("HTTP API listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("HTTP server stopped")
		}
	}()
	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
