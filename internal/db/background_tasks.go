package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UpsertBackgroundTask mirrors task status/result to the host
// application's background-task record, best effort. A record already
// externally set to cancelled is never overwritten.
func (db *DB) UpsertBackgroundTask(ctx context.Context, taskID uuid.UUID, status string, result any) error {
	var resultBytes []byte
	if result != nil {
		var err error
		resultBytes, err = json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to marshal background task result: %w", err)
		}
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO background_tasks (task_id, status, result)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (task_id) DO UPDATE SET status = $2, result = $3, updated_at = NOW()
		 WHERE background_tasks.status <> 'cancelled'`,
		taskID, status, resultBytes,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert background task: %w", err)
	}
	return nil
}

// GetBackgroundTaskStatus returns the mirrored status, or "" if no
// record exists
func (db *DB) GetBackgroundTaskStatus(ctx context.Context, taskID uuid.UUID) (string, error) {
	var status string
	err := db.pool.QueryRow(ctx,
		`SELECT status FROM background_tasks WHERE task_id = $1`, taskID,
	).Scan(&status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("failed to get background task status: %w", err)
	}
	return status, nil
}
