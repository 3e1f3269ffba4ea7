package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/cv-tailor/internal/types"
)

// Document is a stored résumé document with its metadata
type Document struct {
	ID        uuid.UUID            `json:"id"`
	UserID    uuid.UUID            `json:"user_id"`
	Name      string               `json:"name"`
	Language  string               `json:"language,omitempty"`
	Content   types.ResumeDocument `json:"content"`
	CreatedAt time.Time            `json:"created_at"`
}

// GetDocument retrieves a document by ID, or nil if it does not exist
func (db *DB) GetDocument(ctx context.Context, documentID uuid.UUID) (*Document, error) {
	var doc Document
	var content []byte
	err := db.pool.QueryRow(ctx,
		`SELECT id, user_id, name, COALESCE(language, ''), content, created_at
		 FROM documents WHERE id = $1`,
		documentID,
	).Scan(&doc.ID, &doc.UserID, &doc.Name, &doc.Language, &content, &doc.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	if err := json.Unmarshal(content, &doc.Content); err != nil {
		return nil, fmt.Errorf("failed to parse document content: %w", err)
	}
	return &doc, nil
}

// CreateGeneratedDocument stores a recomposed document and returns its
// ID. The source document and job posting references keep provenance.
func (db *DB) CreateGeneratedDocument(ctx context.Context, userID uuid.UUID, name, lang string, content *types.ResumeDocument, sourceDocumentID, jobPostingID uuid.UUID) (uuid.UUID, error) {
	jsonBytes, err := json.Marshal(content)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal document: %w", err)
	}

	var id uuid.UUID
	err = db.pool.QueryRow(ctx,
		`INSERT INTO documents (user_id, name, language, content, source_document_id, job_posting_id)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
		 RETURNING id`,
		userID, name, lang, jsonBytes, sourceDocumentID, jobPostingID,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create generated document: %w", err)
	}
	return id, nil
}

// CreateDocumentVersion stores a version snapshot of a document.
// Version 0 is the pristine source snapshot kept for later comparison;
// version 1 is the adapted result with its change ledger.
func (db *DB) CreateDocumentVersion(ctx context.Context, documentID uuid.UUID, version int, content *types.ResumeDocument, changes []types.Change, jobPostingID *uuid.UUID) error {
	contentBytes, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to marshal version content: %w", err)
	}
	var changesBytes []byte
	if len(changes) > 0 {
		changesBytes, err = json.Marshal(changes)
		if err != nil {
			return fmt.Errorf("failed to marshal version changes: %w", err)
		}
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO document_versions (document_id, version, content, changes, job_posting_id)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (document_id, version) DO UPDATE SET content = $3, changes = $4, created_at = NOW()`,
		documentID, version, contentBytes, changesBytes, jobPostingID,
	)
	if err != nil {
		return fmt.Errorf("failed to create document version %d: %w", version, err)
	}
	return nil
}
