package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/cv-tailor/internal/types"
)

// CreateTask creates a generation task in pending state and returns its ID
func (db *DB) CreateTask(ctx context.Context, userID, sourceDocumentID uuid.UUID, mode types.TaskMode, totalOffers int) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.pool.QueryRow(ctx,
		`INSERT INTO generation_tasks (user_id, source_document_id, mode, total_offers, status)
		 VALUES ($1, $2, $3, $4, 'pending')
		 RETURNING id`,
		userID, sourceDocumentID, mode, totalOffers,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create task: %w", err)
	}
	return id, nil
}

// GetTask retrieves a task by ID, or nil if it does not exist
func (db *DB) GetTask(ctx context.Context, taskID uuid.UUID) (*types.GenerationTask, error) {
	var t types.GenerationTask
	err := db.pool.QueryRow(ctx,
		`SELECT id, user_id, source_document_id, mode, total_offers, completed_offers,
		        status, COALESCE(error, ''), credits_refunded, started_at, completed_at, created_at
		 FROM generation_tasks WHERE id = $1`,
		taskID,
	).Scan(&t.ID, &t.UserID, &t.SourceDocumentID, &t.Mode, &t.TotalOffers, &t.CompletedOffers,
		&t.Status, &t.Error, &t.CreditsRefunded, &t.StartedAt, &t.CompletedAt, &t.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &t, nil
}

// StartTask flips a pending task to running and stamps started_at.
// Returns false if the task was not pending.
func (db *DB) StartTask(ctx context.Context, taskID uuid.UUID) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE generation_tasks SET status = 'running', started_at = NOW()
		 WHERE id = $1 AND status = 'pending'`,
		taskID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to start task: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// FinishTask sets the task's terminal status. The guard keeps a task
// terminal-once: a task already outside {pending, running} is left
// untouched and false is returned.
func (db *DB) FinishTask(ctx context.Context, taskID uuid.UUID, status types.TaskStatus, errMsg string) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE generation_tasks SET status = $1, error = NULLIF($2, ''), completed_at = NOW()
		 WHERE id = $3 AND status IN ('pending', 'running')`,
		status, errMsg, taskID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to finish task: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// IncrementCompletedOffers bumps the task's completed-offer counter,
// capped at total_offers
func (db *DB) IncrementCompletedOffers(ctx context.Context, taskID uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE generation_tasks
		 SET completed_offers = LEAST(completed_offers + 1, total_offers)
		 WHERE id = $1`,
		taskID,
	)
	if err != nil {
		return fmt.Errorf("failed to increment completed offers: %w", err)
	}
	return nil
}
