package credits

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore mimics the conditional-update semantics of the real store
type fakeStore struct {
	mu       sync.Mutex
	refunded map[uuid.UUID]bool
	granted  int
	failNext error
}

func newFakeStore() *fakeStore {
	return &fakeStore{refunded: make(map[uuid.UUID]bool)}
}

func (s *fakeStore) ApplyRefund(_ context.Context, _, offerID, _ uuid.UUID, amount int, _ string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return false, err
	}
	if s.refunded[offerID] {
		return false, nil
	}
	s.refunded[offerID] = true
	s.granted += amount
	return true, nil
}

func TestRefundGrantsOnce(t *testing.T) {
	store := newFakeStore()
	mgr := NewManager(store, 2, zerolog.Nop())
	taskID, offerID, userID := uuid.New(), uuid.New(), uuid.New()

	result := mgr.Refund(context.Background(), taskID, offerID, userID, "phase failed")
	require.True(t, result.Success)
	assert.Equal(t, 2, result.Amount)
	assert.False(t, result.AlreadyRefunded)
	assert.Equal(t, 2, store.granted)

	// second invocation credits nothing
	result = mgr.Refund(context.Background(), taskID, offerID, userID, "phase failed")
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.Amount)
	assert.True(t, result.AlreadyRefunded)
	assert.Equal(t, 2, store.granted)
}

func TestRefundConcurrentDuplicates(t *testing.T) {
	store := newFakeStore()
	mgr := NewManager(store, 1, zerolog.Nop())
	taskID, offerID, userID := uuid.New(), uuid.New(), uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mgr.Refund(context.Background(), taskID, offerID, userID, "cancelled")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.granted)
}

func TestRefundZeroCost(t *testing.T) {
	store := newFakeStore()
	mgr := NewManager(store, 0, zerolog.Nop())

	result := mgr.Refund(context.Background(), uuid.New(), uuid.New(), uuid.New(), "whatever")
	assert.False(t, result.Success)
	assert.Equal(t, 0, result.Amount)
	assert.Empty(t, store.refunded)
}

func TestRefundStoreFailureLeavesFlagUntouched(t *testing.T) {
	store := newFakeStore()
	store.failNext = errors.New("db down")
	mgr := NewManager(store, 3, zerolog.Nop())
	taskID, offerID, userID := uuid.New(), uuid.New(), uuid.New()

	result := mgr.Refund(context.Background(), taskID, offerID, userID, "phase failed")
	assert.False(t, result.Success)
	assert.Equal(t, 0, store.granted)

	// a later legitimate retry can still refund
	result = mgr.Refund(context.Background(), taskID, offerID, userID, "phase failed")
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Amount)
}
