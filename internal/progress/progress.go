// Package progress publishes phase/step progress notifications to a
// per-user live channel. Events are pure notifications: state lives in
// the task, offer and subtask records, never here.
package progress

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event names
const (
	EventProgress            = "cv_generation_progress"
	EventOfferCompleted      = "offer_completed"
	EventOfferFailed         = "offer_failed"
	EventGenerationCompleted = "generation_completed"
)

// Context carries the identity shared by all events of one offer run
type Context struct {
	TaskID      uuid.UUID `json:"task_id"`
	OfferID     uuid.UUID `json:"offer_id,omitempty"`
	OfferIndex  int       `json:"offer_index"`
	TotalOffers int       `json:"total_offers"`
	JobTitle    string    `json:"job_title,omitempty"`
	SourceURL   string    `json:"source_url,omitempty"`
}

// Event is one progress notification
type Event struct {
	Name            string    `json:"name"`
	TaskID          uuid.UUID `json:"task_id"`
	OfferID         uuid.UUID `json:"offer_id,omitempty"`
	OfferIndex      int       `json:"offer_index"`
	TotalOffers     int       `json:"total_offers"`
	Phase           string    `json:"phase,omitempty"`
	Step            string    `json:"step,omitempty"`
	Status          string    `json:"status,omitempty"`
	CurrentItem     *int      `json:"current_item,omitempty"`
	TotalItems      *int      `json:"total_items,omitempty"`
	JobTitle        string    `json:"job_title,omitempty"`
	SourceURL       string    `json:"source_url,omitempty"`
	DocumentName    string    `json:"document_name,omitempty"`
	Error           string    `json:"error,omitempty"`
	CreditsRefunded *bool     `json:"credits_refunded,omitempty"`
	Generated       *int      `json:"generated,omitempty"`
	Failed          *int      `json:"failed,omitempty"`
}

// Publisher delivers events to a user's live channel, best effort
type Publisher interface {
	Publish(ctx context.Context, userID uuid.UUID, event Event) error
}

// NopPublisher discards every event
type NopPublisher struct{}

// Publish discards the event
func (NopPublisher) Publish(context.Context, uuid.UUID, Event) error { return nil }

// Option customizes one event
type Option func(*Event)

// WithItems attaches item-progress counters to an event
func WithItems(current, total int) Option {
	return func(e *Event) {
		e.CurrentItem = &current
		e.TotalItems = &total
	}
}

// Emitter publishes progress events, fire-and-forget. Publish failures
// are logged and swallowed: delivery is never part of correctness.
type Emitter struct {
	publisher Publisher
	log       zerolog.Logger
}

// NewEmitter creates an emitter over the given publisher
func NewEmitter(publisher Publisher, log zerolog.Logger) *Emitter {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Emitter{publisher: publisher, log: log.With().Str("component", "progress").Logger()}
}

func (e *Emitter) publish(ctx context.Context, userID uuid.UUID, event Event) {
	if err := e.publisher.Publish(ctx, userID, event); err != nil {
		e.log.Warn().Err(err).Str("event", event.Name).Msg("progress publish failed")
	}
}

func baseEvent(name string, pctx Context) Event {
	return Event{
		Name:        name,
		TaskID:      pctx.TaskID,
		OfferID:     pctx.OfferID,
		OfferIndex:  pctx.OfferIndex,
		TotalOffers: pctx.TotalOffers,
		JobTitle:    pctx.JobTitle,
		SourceURL:   pctx.SourceURL,
	}
}

// Emit publishes a phase/step transition
func (e *Emitter) Emit(ctx context.Context, userID uuid.UUID, pctx Context, phase, step, status string, opts ...Option) {
	event := baseEvent(EventProgress, pctx)
	event.Phase = phase
	event.Step = step
	event.Status = status
	for _, opt := range opts {
		opt(&event)
	}
	e.publish(ctx, userID, event)
}

// OfferCompleted publishes the successful end of one offer
func (e *Emitter) OfferCompleted(ctx context.Context, userID uuid.UUID, pctx Context, documentName string) {
	event := baseEvent(EventOfferCompleted, pctx)
	event.Status = "completed"
	event.DocumentName = documentName
	e.publish(ctx, userID, event)
}

// OfferFailed publishes the failed (or cancelled) end of one offer
func (e *Emitter) OfferFailed(ctx context.Context, userID uuid.UUID, pctx Context, status, errMsg string, creditsRefunded bool) {
	event := baseEvent(EventOfferFailed, pctx)
	event.Status = status
	event.Error = errMsg
	event.CreditsRefunded = &creditsRefunded
	e.publish(ctx, userID, event)
}

// GenerationCompleted publishes the end-of-task summary
func (e *Emitter) GenerationCompleted(ctx context.Context, userID uuid.UUID, pctx Context, status string, generated, failed int) {
	event := baseEvent(EventGenerationCompleted, pctx)
	event.Status = status
	event.Generated = &generated
	event.Failed = &failed
	e.publish(ctx, userID, event)
}
