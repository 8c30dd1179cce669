package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Server is the HTTP front of the controller.
type Server struct {
	httpServer *http.Server
	service    CommandPort
	hub        TelemetryPort
	logger     *slog.Logger
	startTime  time.Time

	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration
}

// NewServer creates an API server around the command service and event hub.
func NewServer(service CommandPort, hub TelemetryPort, logger *slog.Logger, readTimeout, writeTimeout, idleTimeout time.Duration) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		service:      service,
		hub:          hub,
		logger:       logger,
		startTime:    time.Now(),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		idleTimeout:  idleTimeout,
	}
}

// Handler returns the route tree. Exposed for httptest.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  s.idleTimeout,
	}

	s.logger.Info("http server listening", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop shuts the server down, letting in-flight requests finish.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
