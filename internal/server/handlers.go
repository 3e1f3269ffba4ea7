package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/cv-tailor/internal/pipeline"
	"github.com/jonathan/cv-tailor/internal/types"
)

// StartResponse acknowledges an accepted run
type StartResponse struct {
	TaskID  uuid.UUID `json:"task_id"`
	OfferID uuid.UUID `json:"offer_id,omitempty"`
	Status  string    `json:"status"`
}

// TaskResponse is the state of one task and its offers
type TaskResponse struct {
	Task   *types.GenerationTask `json:"task"`
	Offers []types.Offer         `json:"offers"`
}

// handleStartSingleOffer launches a single-offer run in the background.
// The run outlives the request; progress arrives on the events stream
// and the terminal state lands on the task record.
func (s *Server) handleStartSingleOffer(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid task id")
		return
	}
	offerID, err := uuid.Parse(r.PathValue("offerId"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid offer id")
		return
	}

	task, err := s.store.GetTask(r.Context(), taskID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if task == nil {
		s.errorResponse(w, http.StatusNotFound, "task not found")
		return
	}
	if task.Status != types.StatusPending {
		s.errorResponse(w, http.StatusConflict, "task is not pending")
		return
	}

	go s.runDetached(taskID, func(ctx context.Context) (*pipeline.RunResult, error) {
		return s.runner.RunSingleOffer(ctx, taskID, offerID)
	})

	s.jsonResponse(w, http.StatusAccepted, StartResponse{TaskID: taskID, OfferID: offerID, Status: "accepted"})
}

// handleStartMultiOffer launches a multi-offer run in the background.
func (s *Server) handleStartMultiOffer(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid task id")
		return
	}

	task, err := s.store.GetTask(r.Context(), taskID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if task == nil {
		s.errorResponse(w, http.StatusNotFound, "task not found")
		return
	}
	if task.Status != types.StatusPending {
		s.errorResponse(w, http.StatusConflict, "task is not pending")
		return
	}

	go s.runDetached(taskID, func(ctx context.Context) (*pipeline.RunResult, error) {
		return s.runner.RunMultiOffer(ctx, taskID)
	})

	s.jsonResponse(w, http.StatusAccepted, StartResponse{TaskID: taskID, Status: "accepted"})
}

// runDetached executes a run with its own lifetime.
func (s *Server) runDetached(taskID uuid.UUID, run func(ctx context.Context) (*pipeline.RunResult, error)) {
	result, err := run(context.Background())
	if err != nil {
		s.log.Error().Err(err).Stringer("task_id", taskID).Msg("run aborted")
		return
	}
	s.log.Info().
		Stringer("task_id", taskID).
		Str("status", string(result.Status)).
		Int("generated", result.Generated).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("run finished")
}

// handleCancelTask fires cancellation of a running task.
func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid task id")
		return
	}

	if !s.runner.Cancel(taskID) {
		s.errorResponse(w, http.StatusNotFound, "task is not running")
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"task_id": taskID, "cancelled": true})
}

// handleGetTask returns the task with its offers.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid task id")
		return
	}

	task, err := s.store.GetTask(r.Context(), taskID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if task == nil {
		s.errorResponse(w, http.StatusNotFound, "task not found")
		return
	}
	offers, err := s.store.ListOffers(r.Context(), taskID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, TaskResponse{Task: task, Offers: offers})
}

// handleEvents streams the user's progress events over SSE until the
// client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid or missing user_id")
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	events, unsubscribe := s.hub.Subscribe(userID)
	defer unsubscribe()

	if err := sse.WriteEvent("connected", map[string]string{"user_id": userID.String()}); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := sse.WriteEvent(event.Name, event); err != nil {
				return
			}
		}
	}
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
