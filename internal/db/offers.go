package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/cv-tailor/internal/types"
)

// CreateOffer creates an offer under a task and returns its ID
func (db *DB) CreateOffer(ctx context.Context, taskID uuid.UUID, offerIndex int, kind types.OfferSourceKind, sourceURL, sourceContent string) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.pool.QueryRow(ctx,
		`INSERT INTO offers (task_id, offer_index, source_kind, source_url, source_content, status)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), 'pending')
		 RETURNING id`,
		taskID, offerIndex, kind, sourceURL, sourceContent,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create offer: %w", err)
	}
	return id, nil
}

const offerColumns = `id, task_id, offer_index, source_kind, COALESCE(source_url, ''), COALESCE(source_content, ''),
	job_posting_id, classification_result, batch_results, generated_document_id,
	COALESCE(generated_document_name, ''), status, COALESCE(error, ''), credits_refunded, started_at, completed_at`

func scanOffer(row pgx.Row) (*types.Offer, error) {
	var o types.Offer
	var classification, batches []byte
	err := row.Scan(&o.ID, &o.TaskID, &o.OfferIndex, &o.SourceKind, &o.SourceURL, &o.SourceContent,
		&o.JobPostingID, &classification, &batches, &o.GeneratedDocumentID,
		&o.GeneratedDocumentName, &o.Status, &o.Error, &o.CreditsRefunded, &o.StartedAt, &o.CompletedAt)
	if err != nil {
		return nil, err
	}
	if len(classification) > 0 {
		var cr types.ClassificationResult
		if err := json.Unmarshal(classification, &cr); err == nil {
			o.ClassificationResult = &cr
		}
	}
	if len(batches) > 0 {
		var br types.BatchResults
		if err := json.Unmarshal(batches, &br); err == nil {
			o.BatchResults = &br
		}
	}
	return &o, nil
}

// GetOffer retrieves an offer by ID, or nil if it does not exist
func (db *DB) GetOffer(ctx context.Context, offerID uuid.UUID) (*types.Offer, error) {
	offer, err := scanOffer(db.pool.QueryRow(ctx,
		`SELECT `+offerColumns+` FROM offers WHERE id = $1`, offerID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}
	return offer, nil
}

// ListOffers retrieves all offers of a task ordered by offer index
func (db *DB) ListOffers(ctx context.Context, taskID uuid.UUID) ([]types.Offer, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+offerColumns+` FROM offers WHERE task_id = $1 ORDER BY offer_index`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	defer rows.Close()

	var offers []types.Offer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offer: %w", err)
		}
		offers = append(offers, *offer)
	}
	return offers, nil
}

// SetOfferStatus records a non-terminal progress status (extracting,
// running) and stamps started_at on the first transition out of pending
func (db *DB) SetOfferStatus(ctx context.Context, offerID uuid.UUID, status types.TaskStatus) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE offers SET status = $1, started_at = COALESCE(started_at, NOW())
		 WHERE id = $2 AND status NOT IN ('completed', 'failed', 'cancelled')`,
		status, offerID,
	)
	if err != nil {
		return fmt.Errorf("failed to set offer status: %w", err)
	}
	return nil
}

// FinishOffer sets the offer's terminal status exactly once. Returns
// false if the offer already reached a terminal state.
func (db *DB) FinishOffer(ctx context.Context, offerID uuid.UUID, status types.TaskStatus, errMsg string) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE offers SET status = $1, error = NULLIF($2, ''), completed_at = NOW()
		 WHERE id = $3 AND status NOT IN ('completed', 'failed', 'cancelled')`,
		status, errMsg, offerID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to finish offer: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetOfferJobPosting links the offer to its extracted job posting
func (db *DB) SetOfferJobPosting(ctx context.Context, offerID, jobPostingID uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE offers SET job_posting_id = $1 WHERE id = $2`, jobPostingID, offerID)
	if err != nil {
		return fmt.Errorf("failed to set offer job posting: %w", err)
	}
	return nil
}

// SetOfferClassification stores the classify-phase result
func (db *DB) SetOfferClassification(ctx context.Context, offerID uuid.UUID, result *types.ClassificationResult) error {
	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal classification: %w", err)
	}
	_, err = db.pool.Exec(ctx,
		`UPDATE offers SET classification_result = $1 WHERE id = $2`, jsonBytes, offerID)
	if err != nil {
		return fmt.Errorf("failed to set offer classification: %w", err)
	}
	return nil
}

// SetOfferBatchResults stores the accumulated batch outputs
func (db *DB) SetOfferBatchResults(ctx context.Context, offerID uuid.UUID, results *types.BatchResults) error {
	jsonBytes, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal batch results: %w", err)
	}
	_, err = db.pool.Exec(ctx,
		`UPDATE offers SET batch_results = $1 WHERE id = $2`, jsonBytes, offerID)
	if err != nil {
		return fmt.Errorf("failed to set offer batch results: %w", err)
	}
	return nil
}

// SetOfferGeneratedDocument records the recomposed document reference
func (db *DB) SetOfferGeneratedDocument(ctx context.Context, offerID, documentID uuid.UUID, name string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE offers SET generated_document_id = $1, generated_document_name = $2 WHERE id = $3`,
		documentID, name, offerID)
	if err != nil {
		return fmt.Errorf("failed to set offer generated document: %w", err)
	}
	return nil
}

// ListUnfinishedOffers retrieves the task's offers still in a
// non-terminal state, for the cancellation sweep
func (db *DB) ListUnfinishedOffers(ctx context.Context, taskID uuid.UUID) ([]types.Offer, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+offerColumns+` FROM offers
		 WHERE task_id = $1 AND status NOT IN ('completed', 'failed', 'cancelled')
		 ORDER BY offer_index`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unfinished offers: %w", err)
	}
	defer rows.Close()

	var offers []types.Offer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offer: %w", err)
		}
		offers = append(offers, *offer)
	}
	return offers, nil
}
