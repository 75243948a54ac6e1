// README: API gateway; holds handler dependencies and serves HTTP with graceful shutdown.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"homeserve/internal/http/handlers"
	"homeserve/internal/infra"
	"homeserve/internal/logger"
)

type ServerDeps struct {
	Matching      handlers.MatchingService
	Bookings      handlers.BookingService
	Subscriptions handlers.SubscriptionService
	Verifier      infra.TokenVerifier
	Gatherer      prometheus.Gatherer
	Logger        logger.Logger
}

type Server struct {
	deps ServerDeps
	log  logger.Logger
}

func NewServer(deps ServerDeps) *Server {
	return &Server{deps: deps, log: logger.OrNop(deps.Logger)}
}

func (s *Server) Routes() http.Handler {
	return NewRouter(s.deps)
}

// ListenAndServe blocks until ctx is done, then drains in-flight requests for up to grace.
func (s *Server) ListenAndServe(ctx context.Context, addr string, grace time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("http listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	s.log.Infof("http shutting down")
	return srv.Shutdown(shutdownCtx)
}
