package progress

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

type captures struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (c *captures) Publish(_ context.Context, _ uuid.UUID, event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, event)
	return nil
}

func TestEmitterProgressEvent(t *testing.T) {
	cap := &captures{}
	emitter := NewEmitter(cap, zerolog.Nop())
	pctx := Context{TaskID: uuid.New(), OfferID: uuid.New(), OfferIndex: 1, TotalOffers: 3, JobTitle: "Backend Engineer"}

	emitter.Emit(context.Background(), uuid.New(), pctx, "batching", "batch_experiences", "running", WithItems(2, 5))

	require.Len(t, cap.events, 1)
	event := cap.events[0]
	assert.Equal(t, EventProgress, event.Name)
	assert.Equal(t, pctx.TaskID, event.TaskID)
	assert.Equal(t, "batching", event.Phase)
	assert.Equal(t, "batch_experiences", event.Step)
	assert.Equal(t, "running", event.Status)
	assert.Equal(t, "Backend Engineer", event.JobTitle)
	require.NotNil(t, event.CurrentItem)
	assert.Equal(t, 2, *event.CurrentItem)
	require.NotNil(t, event.TotalItems)
	assert.Equal(t, 5, *event.TotalItems)
}

func TestEmitterSwallowsPublishErrors(t *testing.T) {
	cap := &captures{err: errors.New("channel down")}
	emitter := NewEmitter(cap, zerolog.Nop())

	// must not panic or propagate
	emitter.Emit(context.Background(), uuid.New(), Context{}, "extracting", "fetch", "running")
	emitter.OfferFailed(context.Background(), uuid.New(), Context{}, "failed", "boom", true)
}

func TestEmitterTerminalEvents(t *testing.T) {
	cap := &captures{}
	emitter := NewEmitter(cap, zerolog.Nop())
	pctx := Context{TaskID: uuid.New(), OfferID: uuid.New()}

	emitter.OfferCompleted(context.Background(), uuid.New(), pctx, "CV - Backend Engineer")
	emitter.OfferFailed(context.Background(), uuid.New(), pctx, "cancelled", "cancelled by user", true)
	emitter.GenerationCompleted(context.Background(), uuid.New(), pctx, "completed", 2, 1)

	require.Len(t, cap.events, 3)
	assert.Equal(t, EventOfferCompleted, cap.events[0].Name)
	assert.Equal(t, "CV - Backend Engineer", cap.events[0].DocumentName)

	assert.Equal(t, EventOfferFailed, cap.events[1].Name)
	require.NotNil(t, cap.events[1].CreditsRefunded)
	assert.True(t, *cap.events[1].CreditsRefunded)

	assert.Equal(t, EventGenerationCompleted, cap.events[2].Name)
	require.NotNil(t, cap.events[2].Generated)
	assert.Equal(t, 2, *cap.events[2].Generated)
	require.NotNil(t, cap.events[2].Failed)
	assert.Equal(t, 1, *cap.events[2].Failed)
}

func TestHubFanout(t *testing.T) {
	hub := NewHub()
	userA, userB := uuid.New(), uuid.New()

	chA1, cancelA1 := hub.Subscribe(userA)
	chA2, cancelA2 := hub.Subscribe(userA)
	chB, cancelB := hub.Subscribe(userB)
	defer cancelA2()
	defer cancelB()

	event := Event{Name: EventProgress, Phase: "extracting"}
	require.NoError(t, hub.Publish(context.Background(), userA, event))

	assert.Equal(t, "extracting", (<-chA1).Phase)
	assert.Equal(t, "extracting", (<-chA2).Phase)
	select {
	case <-chB:
		t.Fatal("user B must not receive user A events")
	default:
	}

	// unsubscribed channels stop receiving
	cancelA1()
	require.NoError(t, hub.Publish(context.Background(), userA, event))
	assert.Equal(t, "extracting", (<-chA2).Phase)
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()
	_, cancel := hub.Subscribe(userID)
	defer cancel()

	// more events than the buffer holds; Publish must not block
	for i := 0; i < 100; i++ {
		require.NoError(t, hub.Publish(context.Background(), userID, Event{Name: EventProgress}))
	}
}

func TestFanout(t *testing.T) {
	good := &captures{}
	bad := &captures{err: errors.New("down")}
	fanout := Fanout{bad, good}

	err := fanout.Publish(context.Background(), uuid.New(), Event{Name: EventProgress})
	require.Error(t, err)
	// remaining publishers still receive the event
	assert.Len(t, good.events, 1)
}
