// Package server provides the HTTP REST API for the adaptation service.
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

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jonathan/cv-tailor/internal/pipeline"
	"github.com/jonathan/cv-tailor/internal/progress"
	"github.com/jonathan/cv-tailor/internal/types"
)

// TaskRunner starts and cancels adaptation runs
type TaskRunner interface {
	RunSingleOffer(ctx context.Context, taskID, offerID uuid.UUID) (*pipeline.RunResult, error)
	RunMultiOffer(ctx context.Context, taskID uuid.UUID) (*pipeline.RunResult, error)
	Cancel(taskID uuid.UUID) bool
}

// TaskStore reads the task state the API exposes
type TaskStore interface {
	GetTask(ctx context.Context, taskID uuid.UUID) (*types.GenerationTask, error)
	ListOffers(ctx context.Context, taskID uuid.UUID) ([]types.Offer, error)
}

// Server is the HTTP server
type Server struct {
	httpServer *http.Server
	store      TaskStore
	runner     TaskRunner
	hub        *progress.Hub
	log        zerolog.Logger
}

// Config holds server configuration
type Config struct {
	Port int
}

// New creates a server over an already wired store, runner and hub.
func New(cfg Config, store TaskStore, runner TaskRunner, hub *progress.Hub, log zerolog.Logger) *Server {
	s := &Server{
		store:  store,
		runner: runner,
		hub:    hub,
		log:    log.With().Str("component", "server").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /tasks/{id}/offers/{offerId}/start", s.handleStartSingleOffer)
	mux.HandleFunc("POST /tasks/{id}/start", s.handleStartMultiOffer)
	mux.HandleFunc("POST /tasks/{id}/cancel", s.handleCancelTask)
	mux.HandleFunc("GET /tasks/{id}", s.handleGetTask)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the route table, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.httpServer.Addr).Msg("server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	s.log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// jsonResponse writes a JSON response with the given status
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn().Err(err).Msg("failed to encode response")
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}
