// Package types provides type definitions for structured data used throughout the cv-tailor system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a generation task or offer
type TaskStatus string

// Task and offer lifecycle states
const (
	StatusPending    TaskStatus = "pending"
	StatusRunning    TaskStatus = "running"
	StatusExtracting TaskStatus = "extracting"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
	StatusCancelled  TaskStatus = "cancelled"
)

// Terminal reports whether the status is a terminal state
func (s TaskStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// TaskMode distinguishes single-offer tasks from multi-offer tasks
type TaskMode string

// Task modes
const (
	ModeSingle TaskMode = "single"
	ModeMulti  TaskMode = "multi"
)

// GenerationTask is one adaptation request, possibly spanning multiple job postings.
// Created before the runner starts and mutated only by the runner; once status
// leaves {pending, running} it never changes again.
type GenerationTask struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	SourceDocumentID uuid.UUID  `json:"source_document_id"`
	Mode             TaskMode   `json:"mode"`
	TotalOffers      int        `json:"total_offers"`
	CompletedOffers  int        `json:"completed_offers"`
	Status           TaskStatus `json:"status"`
	Error            string     `json:"error,omitempty"`
	CreditsRefunded  int        `json:"credits_refunded"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// OfferSourceKind identifies how the job posting content is supplied
type OfferSourceKind string

// Offer source kinds
const (
	SourceURL      OfferSourceKind = "url"
	SourceFile     OfferSourceKind = "file"
	SourceMarkdown OfferSourceKind = "markdown"
)

// Offer is one job posting to adapt against, child of a task
type Offer struct {
	ID                    uuid.UUID             `json:"id"`
	TaskID                uuid.UUID             `json:"task_id"`
	OfferIndex            int                   `json:"offer_index"`
	SourceKind            OfferSourceKind       `json:"source_kind"`
	SourceURL             string                `json:"source_url,omitempty"`
	SourceContent         string                `json:"source_content,omitempty"`
	JobPostingID          *uuid.UUID            `json:"job_posting_id,omitempty"`
	ClassificationResult  *ClassificationResult `json:"classification_result,omitempty"`
	BatchResults          *BatchResults         `json:"batch_results,omitempty"`
	GeneratedDocumentID   *uuid.UUID            `json:"generated_document_id,omitempty"`
	GeneratedDocumentName string                `json:"generated_document_name,omitempty"`
	Status                TaskStatus            `json:"status"`
	Error                 string                `json:"error,omitempty"`
	CreditsRefunded       bool                  `json:"credits_refunded"`
	StartedAt             *time.Time            `json:"started_at,omitempty"`
	CompletedAt           *time.Time            `json:"completed_at,omitempty"`
}

// SubtaskType names the phase a subtask record audits
type SubtaskType string

// Subtask types, one per pipeline phase
const (
	SubtaskExtraction      SubtaskType = "extraction"
	SubtaskClassify        SubtaskType = "classify"
	SubtaskBatchExperience SubtaskType = "batch_experience"
	SubtaskBatchProject    SubtaskType = "batch_project"
	SubtaskBatchExtras     SubtaskType = "batch_extras"
	SubtaskBatchEducation  SubtaskType = "batch_education"
	SubtaskBatchLanguages  SubtaskType = "batch_languages"
	SubtaskBatchSkills     SubtaskType = "batch_skills"
	SubtaskBatchSummary    SubtaskType = "batch_summary"
	SubtaskRecompose       SubtaskType = "recompose"
)

// Subtask is the audit record of one phase execution. One row per
// attempt-cycle: retries update the row in place instead of appending.
type Subtask struct {
	ID               uuid.UUID   `json:"id"`
	TaskID           uuid.UUID   `json:"task_id"`
	OfferID          uuid.UUID   `json:"offer_id"`
	Type             SubtaskType `json:"type"`
	ItemIndex        *int        `json:"item_index,omitempty"`
	Status           TaskStatus  `json:"status"`
	Input            []byte      `json:"input,omitempty"`
	Output           []byte      `json:"output,omitempty"`
	Model            string      `json:"model,omitempty"`
	PromptTokens     int         `json:"prompt_tokens"`
	CompletionTokens int         `json:"completion_tokens"`
	CachedTokens     int         `json:"cached_tokens"`
	CostUSD          float64     `json:"cost_usd"`
	RetryCount       int         `json:"retry_count"`
	Error            string      `json:"error,omitempty"`
	DurationMS       int64       `json:"duration_ms"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}
