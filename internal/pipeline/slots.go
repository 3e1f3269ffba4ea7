package pipeline

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrNoSlot is returned when a user already runs the maximum number of
// concurrent tasks of one kind.
var ErrNoSlot = fmt.Errorf("concurrency limit reached for this task type")

type slotKey struct {
	userID uuid.UUID
	kind   string
}

// Slots gates per-user concurrency, counted separately per task kind.
type Slots struct {
	mu    sync.Mutex
	limit int
	held  map[slotKey]int
}

// NewSlots creates a slot table allowing limit concurrent tasks per
// user and kind. A non-positive limit means 1.
func NewSlots(limit int) *Slots {
	if limit <= 0 {
		limit = 1
	}
	return &Slots{limit: limit, held: make(map[slotKey]int)}
}

// Acquire claims a slot or returns ErrNoSlot. Callers must Release
// exactly once per successful Acquire.
func (s *Slots) Acquire(userID uuid.UUID, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := slotKey{userID: userID, kind: kind}
	if s.held[key] >= s.limit {
		return ErrNoSlot
	}
	s.held[key]++
	return nil
}

// Release returns a previously acquired slot.
func (s *Slots) Release(userID uuid.UUID, kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := slotKey{userID: userID, kind: kind}
	if s.held[key] <= 1 {
		delete(s.held, key)
		return
	}
	s.held[key]--
}

// InUse reports how many slots the user currently holds for kind.
func (s *Slots) InUse(userID uuid.UUID, kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held[slotKey{userID: userID, kind: kind}]
}
