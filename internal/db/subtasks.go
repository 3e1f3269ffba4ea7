package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/cv-tailor/internal/types"
)

// CreateSubtask inserts a running subtask row for one phase execution
// and returns its ID. Retries of the same phase update this row in
// place instead of inserting a new one.
func (db *DB) CreateSubtask(ctx context.Context, taskID, offerID uuid.UUID, subtaskType types.SubtaskType, itemIndex *int, input []byte) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.pool.QueryRow(ctx,
		`INSERT INTO subtasks (task_id, offer_id, type, item_index, status, input)
		 VALUES ($1, $2, $3, $4, 'running', $5)
		 RETURNING id`,
		taskID, offerID, subtaskType, itemIndex, input,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create subtask: %w", err)
	}
	return id, nil
}

// CompleteSubtask finalizes a subtask with its output and telemetry
func (db *DB) CompleteSubtask(ctx context.Context, subtaskID uuid.UUID, output []byte, model string, promptTokens, completionTokens, cachedTokens int, costUSD float64, durationMS int64) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE subtasks
		 SET status = 'completed', output = $1, model = $2,
		     prompt_tokens = $3, completion_tokens = $4, cached_tokens = $5,
		     cost_usd = $6, duration_ms = $7, updated_at = NOW()
		 WHERE id = $8`,
		output, model, promptTokens, completionTokens, cachedTokens, costUSD, durationMS, subtaskID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete subtask: %w", err)
	}
	return nil
}

// FailSubtask finalizes a subtask in failure
func (db *DB) FailSubtask(ctx context.Context, subtaskID uuid.UUID, errMsg string, durationMS int64) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE subtasks SET status = 'failed', error = $1, duration_ms = $2, updated_at = NOW()
		 WHERE id = $3`,
		errMsg, durationMS, subtaskID,
	)
	if err != nil {
		return fmt.Errorf("failed to fail subtask: %w", err)
	}
	return nil
}

// BumpSubtaskRetry increments the retry counter before a new attempt
func (db *DB) BumpSubtaskRetry(ctx context.Context, subtaskID uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE subtasks SET retry_count = retry_count + 1, updated_at = NOW() WHERE id = $1`,
		subtaskID,
	)
	if err != nil {
		return fmt.Errorf("failed to bump subtask retry: %w", err)
	}
	return nil
}

// ListSubtasks retrieves all subtasks of an offer in creation order
func (db *DB) ListSubtasks(ctx context.Context, offerID uuid.UUID) ([]types.Subtask, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, task_id, offer_id, type, item_index, status, input, output,
		        COALESCE(model, ''), prompt_tokens, completion_tokens, cached_tokens,
		        cost_usd, retry_count, COALESCE(error, ''), duration_ms, created_at, updated_at
		 FROM subtasks WHERE offer_id = $1 ORDER BY created_at`,
		offerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list subtasks: %w", err)
	}
	defer rows.Close()

	var subtasks []types.Subtask
	for rows.Next() {
		var s types.Subtask
		if err := rows.Scan(&s.ID, &s.TaskID, &s.OfferID, &s.Type, &s.ItemIndex, &s.Status,
			&s.Input, &s.Output, &s.Model, &s.PromptTokens, &s.CompletionTokens, &s.CachedTokens,
			&s.CostUSD, &s.RetryCount, &s.Error, &s.DurationMS, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subtask: %w", err)
		}
		subtasks = append(subtasks, s)
	}
	return subtasks, nil
}
