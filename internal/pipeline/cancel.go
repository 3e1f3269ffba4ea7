package pipeline

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// CancelRegistry tracks the cancellation handle of every running task
// so an API call can stop a run it does not own a context for.
type CancelRegistry struct {
	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
}

// NewCancelRegistry creates an empty registry.
func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{cancels: make(map[uuid.UUID]context.CancelFunc)}
}

// Register derives a cancellable context for the task and stores its
// handle. The returned cancel must be called when the run ends; it also
// removes the registration.
func (r *CancelRegistry) Register(ctx context.Context, taskID uuid.UUID) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancels[taskID] = cancel
	r.mu.Unlock()

	return runCtx, func() {
		r.mu.Lock()
		delete(r.cancels, taskID)
		r.mu.Unlock()
		cancel()
	}
}

// Cancel fires the task's cancellation and reports whether the task was
// registered.
func (r *CancelRegistry) Cancel(taskID uuid.UUID) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[taskID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Running reports whether the task currently has a registered run.
func (r *CancelRegistry) Running(taskID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cancels[taskID]
	return ok
}
