// Package phases implements the per-offer pipeline phases: posting
// extraction, experience/project classification, the parallel section
// batches, the post-barrier summary, and final recomposition. Every phase
// execution is audited by a subtask row, wrapped in the retry schedule, and
// reported on the user's progress channel.
package phases

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jonathan/cv-tailor/internal/db"
	"github.com/jonathan/cv-tailor/internal/fetch"
	"github.com/jonathan/cv-tailor/internal/llm"
	"github.com/jonathan/cv-tailor/internal/progress"
	"github.com/jonathan/cv-tailor/internal/retry"
	"github.com/jonathan/cv-tailor/internal/types"
)

// Phase names as they appear in progress events
const (
	PhaseExtraction = "extraction"
	PhaseClassify   = "classification"
	PhaseBatch      = "batch"
	PhaseSummary    = "summary"
	PhaseRecompose  = "recompose"
)

// Store is the persistence surface the phases need. *db.DB satisfies it.
type Store interface {
	CreateSubtask(ctx context.Context, taskID, offerID uuid.UUID, subtaskType types.SubtaskType, itemIndex *int, input []byte) (uuid.UUID, error)
	CompleteSubtask(ctx context.Context, subtaskID uuid.UUID, output []byte, model string, promptTokens, completionTokens, cachedTokens int, costUSD float64, durationMS int64) error
	FailSubtask(ctx context.Context, subtaskID uuid.UUID, errMsg string, durationMS int64) error
	BumpSubtaskRetry(ctx context.Context, subtaskID uuid.UUID) error

	FindJobPostingBySource(ctx context.Context, sourceURL, sourceHash string) (*types.JobPosting, error)
	SaveJobPosting(ctx context.Context, posting *types.JobPosting) (uuid.UUID, error)
	GetJobPosting(ctx context.Context, postingID uuid.UUID) (*types.JobPosting, error)
	SetOfferJobPosting(ctx context.Context, offerID, jobPostingID uuid.UUID) error
	SetOfferClassification(ctx context.Context, offerID uuid.UUID, result *types.ClassificationResult) error

	CreateGeneratedDocument(ctx context.Context, userID uuid.UUID, name, lang string, content *types.ResumeDocument, sourceDocumentID, jobPostingID uuid.UUID) (uuid.UUID, error)
	CreateDocumentVersion(ctx context.Context, documentID uuid.UUID, version int, content *types.ResumeDocument, changes []types.Change, jobPostingID *uuid.UUID) error
	SetOfferGeneratedDocument(ctx context.Context, offerID, documentID uuid.UUID, name string) error
}

var _ Store = (*db.DB)(nil)

// Runner executes phases for one offer at a time
type Runner struct {
	store   Store
	client  llm.Client
	fetcher *fetch.Client
	emitter *progress.Emitter
	retry   retry.Config
	log     zerolog.Logger
}

// NewRunner wires a phase runner. A nil fetcher disables URL sources.
func NewRunner(store Store, client llm.Client, fetcher *fetch.Client, emitter *progress.Emitter, retryCfg retry.Config, log zerolog.Logger) *Runner {
	if emitter == nil {
		emitter = progress.NewEmitter(nil, log)
	}
	return &Runner{
		store:   store,
		client:  client,
		fetcher: fetcher,
		emitter: emitter,
		retry:   retryCfg,
		log:     log.With().Str("component", "phases").Logger(),
	}
}

// OfferContext carries the identity of the offer run all phases share
type OfferContext struct {
	Task     *types.GenerationTask
	Offer    *types.Offer
	Progress progress.Context
	// SourceLanguage is the source document's language code.
	SourceLanguage string
	// TargetLanguage is the adapted document's language code, resolved
	// during extraction from the posting.
	TargetLanguage string
}

func (r *Runner) emit(ctx context.Context, oc *OfferContext, phase, step, status string) {
	r.emitter.Emit(ctx, oc.Task.UserID, oc.Progress, phase, step, status)
}

// stepResult is what one phase attempt produces: the typed value plus the
// telemetry persisted on the subtask row.
type stepResult[T any] struct {
	value  T
	output []byte
	model  string
	usage  llm.Usage
}

// runStep wraps one phase execution in its audit record and the retry
// schedule: a running subtask row is created first, retries bump its
// counter in place, and the same row is finalized completed or failed.
func runStep[T any](ctx context.Context, r *Runner, oc *OfferContext, subtaskType types.SubtaskType, input any, op func(ctx context.Context, attempt int) (stepResult[T], error)) (T, error) {
	var zero T

	var inputJSON []byte
	if input != nil {
		inputJSON, _ = json.Marshal(input)
	}
	subtaskID, err := r.store.CreateSubtask(ctx, oc.Task.ID, oc.Offer.ID, subtaskType, nil, inputJSON)
	if err != nil {
		return zero, err
	}

	start := time.Now()
	result, err := retry.Do(ctx, r.retry, func(attempt int) (stepResult[T], error) {
		return op(ctx, attempt)
	}, func(attempt int) {
		r.log.Warn().
			Str("subtask", string(subtaskType)).
			Stringer("offer_id", oc.Offer.ID).
			Int("attempt", attempt).
			Msg("retrying phase")
		if err := r.store.BumpSubtaskRetry(ctx, subtaskID); err != nil {
			r.log.Warn().Err(err).Msg("failed to bump subtask retry")
		}
	})
	durationMS := time.Since(start).Milliseconds()

	// Finalize the audit row even when the phase context was cancelled.
	finalCtx := context.WithoutCancel(ctx)
	if err != nil {
		if dbErr := r.store.FailSubtask(finalCtx, subtaskID, err.Error(), durationMS); dbErr != nil {
			r.log.Warn().Err(dbErr).Msg("failed to finalize subtask")
		}
		return zero, err
	}

	cost := llm.EstimateCost(result.model, result.usage)
	if dbErr := r.store.CompleteSubtask(finalCtx, subtaskID, result.output,
		result.model, result.usage.PromptTokens, result.usage.CompletionTokens,
		result.usage.CachedTokens, cost, durationMS); dbErr != nil {
		r.log.Warn().Err(dbErr).Msg("failed to finalize subtask")
	}
	return result.value, nil
}

// postingPromptView is the trimmed posting representation embedded in
// prompts: everything structured, never the raw page text.
type postingPromptView struct {
	Title            string                `json:"title"`
	Company          string                `json:"company,omitempty"`
	Location         string                `json:"location,omitempty"`
	Language         string                `json:"language,omitempty"`
	Skills           types.JobSkills       `json:"skills"`
	Responsibilities []string              `json:"responsibilities,omitempty"`
	Requirements     types.JobRequirements `json:"requirements"`
}

func postingJSON(posting *types.JobPosting) string {
	view := postingPromptView{
		Title:            posting.Title,
		Company:          posting.Company,
		Location:         posting.Location,
		Language:         posting.Language,
		Skills:           posting.Skills,
		Responsibilities: posting.Responsibilities,
		Requirements:     posting.Requirements,
	}
	data, err := json.Marshal(view)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}
