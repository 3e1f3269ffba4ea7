package progress

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Hub is an in-process publisher fanning events out to per-user
// subscribers, used to bridge progress events onto SSE connections.
type Hub struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[chan Event]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]map[chan Event]struct{})}
}

// Subscribe registers a subscriber for one user's events. The returned
// cancel function must be called when the subscriber goes away.
func (h *Hub) Subscribe(userID uuid.UUID) (<-chan Event, func()) {
	ch := make(chan Event, 16)

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan Event]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[userID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, userID)
			}
		}
		h.mu.Unlock()
		close(ch)
	}
	return ch, cancel
}

// Publish fans the event out to the user's subscribers. Slow
// subscribers with a full buffer miss the event rather than block the
// pipeline.
func (h *Hub) Publish(_ context.Context, userID uuid.UUID, event Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[userID] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Fanout combines several publishers into one
type Fanout []Publisher

// Publish delivers the event to every publisher, returning the first error
func (f Fanout) Publish(ctx context.Context, userID uuid.UUID, event Event) error {
	var firstErr error
	for _, p := range f {
		if err := p.Publish(ctx, userID, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
