package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/postgram/postgram/internal/feed"
	"github.com/postgram/postgram/internal/pipeline"
)

const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 60 * time.Second
	shutdownTimeout = 5 * time.Second
)

// EventHandler processes a post-published event end to end.
type EventHandler interface {
	HandlePostPublished(ctx context.Context, ev feed.PostPublishedEvent) (pipeline.Outcome, error)
}

// Server is the HTTP ingress. It receives post-published webhooks from the
// CMS and exposes health and metrics endpoints.
type Server struct {
	bind     string
	handler  EventHandler
	registry *prometheus.Registry
	logger   *slog.Logger
	server   *http.Server
}

// New creates a Server bound to addr. registry may be nil to disable the
// /metrics endpoint.
func New(bind string, handler EventHandler, registry *prometheus.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		bind:     bind,
		handler:  handler,
		registry: registry,
		logger:   logger,
	}
}

// Start binds the listener and serves in the background. It returns an error
// only if the listener cannot be bound.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.bind,
		Handler:      s.buildRouter(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", s.bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		s.logger.Info("gateway listening", "addr", s.bind)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	s.logger.Info("gateway shutting down")
	return s.server.Shutdown(shutdownCtx)
}
