// Package credits implements compensating credit refunds for failed
// adaptation work, idempotent per offer.
package credits

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store is the persistence surface the manager needs. ApplyRefund must
// flip the offer's refund flag, grant the credits and accumulate the
// task total atomically, returning false without error when the flag
// was already set.
type Store interface {
	ApplyRefund(ctx context.Context, taskID, offerID, userID uuid.UUID, amount int, reason string) (bool, error)
}

// Result reports the outcome of one refund attempt
type Result struct {
	Success         bool `json:"success"`
	Amount          int  `json:"amount"`
	AlreadyRefunded bool `json:"already_refunded,omitempty"`
}

// Manager grants compensating refunds
type Manager struct {
	store Store
	cost  int
	log   zerolog.Logger
}

// NewManager creates a manager refunding cost credits per failed offer
func NewManager(store Store, cost int, log zerolog.Logger) *Manager {
	return &Manager{store: store, cost: cost, log: log.With().Str("component", "credits").Logger()}
}

// Refund grants the configured cost back to the user for one failed
// offer, exactly once. A second call for the same offer reports
// AlreadyRefunded without touching the balance. A zero configured cost
// or a failed grant leaves the offer's flag untouched so a later
// legitimate attempt can still refund.
func (m *Manager) Refund(ctx context.Context, taskID, offerID, userID uuid.UUID, reason string) Result {
	if m.cost <= 0 {
		m.log.Warn().Str("offer_id", offerID.String()).Msg("refund skipped: no cost configured")
		return Result{Success: false, Amount: 0}
	}

	applied, err := m.store.ApplyRefund(ctx, taskID, offerID, userID, m.cost, reason)
	if err != nil {
		m.log.Error().Err(err).
			Str("task_id", taskID.String()).
			Str("offer_id", offerID.String()).
			Msg("refund failed")
		return Result{Success: false, Amount: 0}
	}
	if !applied {
		m.log.Debug().Str("offer_id", offerID.String()).Msg("refund already granted")
		return Result{Success: true, Amount: 0, AlreadyRefunded: true}
	}

	m.log.Info().
		Str("task_id", taskID.String()).
		Str("offer_id", offerID.String()).
		Int("amount", m.cost).
		Str("reason", reason).
		Msg("credits refunded")
	return Result{Success: true, Amount: m.cost}
}
