package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/cv-tailor/internal/types"
)

// FindJobPostingBySource looks up a cached posting by its source
// identity: the URL for URL sources, the content hash otherwise.
// Returns nil on a cache miss.
func (db *DB) FindJobPostingBySource(ctx context.Context, sourceURL, sourceHash string) (*types.JobPosting, error) {
	var row pgx.Row
	switch {
	case sourceURL != "":
		row = db.pool.QueryRow(ctx,
			`SELECT id, content, created_at FROM job_postings WHERE source_url = $1
			 ORDER BY created_at DESC LIMIT 1`, sourceURL)
	case sourceHash != "":
		row = db.pool.QueryRow(ctx,
			`SELECT id, content, created_at FROM job_postings WHERE source_hash = $1
			 ORDER BY created_at DESC LIMIT 1`, sourceHash)
	default:
		return nil, nil
	}

	var id uuid.UUID
	var content []byte
	var posting types.JobPosting
	if err := row.Scan(&id, &content, &posting.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find job posting: %w", err)
	}
	if err := json.Unmarshal(content, &posting); err != nil {
		return nil, fmt.Errorf("failed to parse job posting: %w", err)
	}
	posting.ID = id
	return &posting, nil
}

// SaveJobPosting stores an extracted posting and returns its ID
func (db *DB) SaveJobPosting(ctx context.Context, posting *types.JobPosting) (uuid.UUID, error) {
	content, err := json.Marshal(posting)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal job posting: %w", err)
	}

	var id uuid.UUID
	err = db.pool.QueryRow(ctx,
		`INSERT INTO job_postings (title, source_url, source_hash, language, content)
		 VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), $5)
		 RETURNING id`,
		posting.Title, posting.SourceURL, posting.SourceHash, posting.Language, content,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to save job posting: %w", err)
	}
	return id, nil
}

// GetJobPosting retrieves a posting by ID, or nil if it does not exist
func (db *DB) GetJobPosting(ctx context.Context, postingID uuid.UUID) (*types.JobPosting, error) {
	var content []byte
	var posting types.JobPosting
	err := db.pool.QueryRow(ctx,
		`SELECT content, created_at FROM job_postings WHERE id = $1`, postingID,
	).Scan(&content, &posting.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job posting: %w", err)
	}
	if err := json.Unmarshal(content, &posting); err != nil {
		return nil, fmt.Errorf("failed to parse job posting: %w", err)
	}
	posting.ID = postingID
	return &posting, nil
}
