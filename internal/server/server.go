// Package server provides the HTTP surface of the pipeline service: the
// analysis-service callback endpoint, the object-arrival endpoint, and
// operational probes.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hearstlab/storyshare/internal/indexer"
	"github.com/hearstlab/storyshare/internal/pipeline"
)

// Handler is the slice of the pipeline the server drives.
type Handler interface {
	HandleArrival(ctx context.Context, event pipeline.ArrivalEvent) error
	HandleCallback(ctx context.Context, cb indexer.Callback) error
}

// NewsroomProbe checks newsroom connectivity for the debug endpoint.
type NewsroomProbe interface {
	Login(ctx context.Context) error
}

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	pipeline   Handler
	newsroom   NewsroomProbe
	log        zerolog.Logger
}

// New creates a new server instance.
func New(port int, handler Handler, newsroom NewsroomProbe, log zerolog.Logger) *Server {
	s := &Server{
		pipeline: handler,
		newsroom: newsroom,
		log:      log.With().Str("component", "server").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /callbacks/indexer", s.handleIndexerCallback)
	mux.HandleFunc("POST /arrivals", s.handleArrival)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /debug/enps", s.handleEnpsProbe)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.withLogging(mux),
		// Callback handling drives the whole back half of the pipeline
		// inline, including retry backoff, so the write timeout is generous.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Routes exposes the handler for tests.
func (s *Server) Routes() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for requests and blocks until shutdown.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		s.log.Info().Str("addr", s.httpServer.Addr).Msg("server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-stop
	s.log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info().Msg("server stopped")
	return nil
}

// withLogging adds request logging.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleEnpsProbe checks newsroom connectivity.
func (s *Server) handleEnpsProbe(w http.ResponseWriter, r *http.Request) {
	if err := s.newsroom.Login(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("newsroom probe failed")
		s.errorResponse(w, http.StatusBadGateway, "newsroom login failed")
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"enps": "ok"})
}

// jsonResponse writes a JSON response.
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

// errorResponse writes an error JSON response.
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}
