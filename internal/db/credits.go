package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ApplyRefund performs the whole compensating refund in one
// transaction. The offer's credits_refunded flag is the idempotence
// guard: it is flipped false→true with a conditional update, and if no
// row changes the refund was already granted and nothing else runs.
// Returns true when the refund was applied by this call.
func (db *DB) ApplyRefund(ctx context.Context, taskID, offerID, userID uuid.UUID, amount int, reason string) (bool, error) {
	if amount <= 0 {
		return false, fmt.Errorf("refund amount must be positive")
	}

	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("failed to begin refund transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	tag, err := tx.Exec(ctx,
		`UPDATE offers SET credits_refunded = TRUE
		 WHERE id = $1 AND credits_refunded = FALSE`,
		offerID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to flag offer refund: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// already refunded; leave everything untouched
		return false, nil
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO credit_ledger (user_id, task_id, offer_id, amount, entry_type, reason)
		 VALUES ($1, $2, $3, $4, 'refund', $5)`,
		userID, taskID, offerID, amount, reason,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert refund ledger entry: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE user_credits SET balance = balance + $1, updated_at = NOW() WHERE user_id = $2`,
		amount, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to credit user balance: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE generation_tasks SET credits_refunded = credits_refunded + $1 WHERE id = $2`,
		amount, taskID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to accumulate task refund: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit refund: %w", err)
	}
	return true, nil
}

// GetCreditBalance returns the user's current credit balance
func (db *DB) GetCreditBalance(ctx context.Context, userID uuid.UUID) (int, error) {
	var balance int
	err := db.pool.QueryRow(ctx,
		`SELECT balance FROM user_credits WHERE user_id = $1`, userID,
	).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get credit balance: %w", err)
	}
	return balance, nil
}
