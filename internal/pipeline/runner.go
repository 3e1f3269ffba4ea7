package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jonathan/cv-tailor/internal/credits"
	"github.com/jonathan/cv-tailor/internal/language"
	"github.com/jonathan/cv-tailor/internal/phases"
	"github.com/jonathan/cv-tailor/internal/progress"
	"github.com/jonathan/cv-tailor/internal/retry"
	"github.com/jonathan/cv-tailor/internal/types"
)

// Slot kinds, one concurrency budget each
const (
	slotSingle = "single_offer"
	slotMulti  = "multi_offer"
)

// RunResult summarizes one completed task run
type RunResult struct {
	Success         bool             `json:"success"`
	Status          types.TaskStatus `json:"status"`
	Generated       int              `json:"generated"`
	Failed          int              `json:"failed"`
	CreditsRefunded int              `json:"credits_refunded"`
	Duration        time.Duration    `json:"duration"`
}

// Runner executes tasks end to end: slot gating, the offer loop,
// terminal bookkeeping, refunds, and notifications.
type Runner struct {
	store     Store
	processor *Processor
	credits   *credits.Manager
	emitter   *progress.Emitter
	slots     *Slots
	cancels   *CancelRegistry
	log       zerolog.Logger
}

// NewRunner wires a task runner.
func NewRunner(store Store, processor *Processor, creditMgr *credits.Manager, emitter *progress.Emitter, slots *Slots, cancels *CancelRegistry, log zerolog.Logger) *Runner {
	if emitter == nil {
		emitter = progress.NewEmitter(nil, log)
	}
	return &Runner{
		store:     store,
		processor: processor,
		credits:   creditMgr,
		emitter:   emitter,
		slots:     slots,
		cancels:   cancels,
		log:       log.With().Str("component", "runner").Logger(),
	}
}

// Cancel fires the cancellation of a running task. Returns false when
// the task has no registered run in this process.
func (r *Runner) Cancel(taskID uuid.UUID) bool {
	return r.cancels.Cancel(taskID)
}

// RunSingleOffer executes a single-offer task: one task, one offer,
// intended for parallel submission of many independent tasks.
func (r *Runner) RunSingleOffer(ctx context.Context, taskID, offerID uuid.UUID) (*RunResult, error) {
	start := time.Now()

	task, err := r.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("task %s not found", taskID)
	}

	if err := r.slots.Acquire(task.UserID, slotSingle); err != nil {
		return nil, err
	}
	defer r.slots.Release(task.UserID, slotSingle)

	runCtx, done := r.cancels.Register(ctx, taskID)
	defer done()

	started, err := r.store.StartTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !started {
		return nil, fmt.Errorf("task %s is not pending", taskID)
	}

	offer, err := r.store.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer == nil || offer.TaskID != taskID {
		return nil, fmt.Errorf("offer %s not found for task %s", offerID, taskID)
	}

	outcome := r.runOffer(runCtx, task, offer)

	status := types.StatusCompleted
	errMsg := ""
	if !outcome.success {
		status = outcome.status
		errMsg = outcome.errMsg
	}

	finalCtx := context.WithoutCancel(ctx)
	if _, err := r.store.FinishTask(finalCtx, taskID, status, errMsg); err != nil {
		r.log.Error().Err(err).Stringer("task_id", taskID).Msg("failed to finish task")
	}

	result := &RunResult{
		Success:         outcome.success,
		Status:          status,
		CreditsRefunded: outcome.refunded,
		Duration:        time.Since(start),
	}
	if outcome.success {
		result.Generated = 1
	} else {
		result.Failed = 1
	}

	r.mirrorBackground(finalCtx, taskID, status, result)
	r.emitter.GenerationCompleted(finalCtx, task.UserID, progress.Context{
		TaskID:      taskID,
		TotalOffers: task.TotalOffers,
	}, string(status), result.Generated, result.Failed)

	return result, nil
}

// RunMultiOffer executes a multi-offer task sequentially. Sequential
// processing keeps the provider's prompt cache warm across offers that
// share the same base document.
func (r *Runner) RunMultiOffer(ctx context.Context, taskID uuid.UUID) (*RunResult, error) {
	start := time.Now()

	task, err := r.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("task %s not found", taskID)
	}

	if err := r.slots.Acquire(task.UserID, slotMulti); err != nil {
		return nil, err
	}
	defer r.slots.Release(task.UserID, slotMulti)

	runCtx, done := r.cancels.Register(ctx, taskID)
	defer done()

	started, err := r.store.StartTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !started {
		return nil, fmt.Errorf("task %s is not pending", taskID)
	}

	offers, err := r.store.ListOffers(ctx, taskID)
	if err != nil {
		return nil, err
	}

	result := &RunResult{}
	cancelled := false
	for i := range offers {
		if runCtx.Err() != nil {
			cancelled = true
			break
		}
		outcome := r.runOffer(runCtx, task, &offers[i])
		result.CreditsRefunded += outcome.refunded
		if outcome.success {
			result.Generated++
		} else {
			result.Failed++
			if outcome.status == types.StatusCancelled {
				cancelled = true
				break
			}
		}
	}

	finalCtx := context.WithoutCancel(ctx)
	if cancelled {
		result.CreditsRefunded += r.sweepCancelled(finalCtx, task)
	}

	status := types.StatusFailed
	switch {
	case cancelled:
		status = types.StatusCancelled
	case result.Generated > 0:
		status = types.StatusCompleted
	}
	result.Status = status
	result.Success = status == types.StatusCompleted
	result.Duration = time.Since(start)

	if _, err := r.store.FinishTask(finalCtx, taskID, status, ""); err != nil {
		r.log.Error().Err(err).Stringer("task_id", taskID).Msg("failed to finish task")
	}
	r.mirrorBackground(finalCtx, taskID, status, result)
	r.emitter.GenerationCompleted(finalCtx, task.UserID, progress.Context{
		TaskID:      taskID,
		TotalOffers: task.TotalOffers,
	}, string(status), result.Generated, result.Failed)

	return result, nil
}

// offerOutcome is the terminal bookkeeping of one offer run
type offerOutcome struct {
	success  bool
	status   types.TaskStatus
	errMsg   string
	refunded int
}

// runOffer processes one offer and settles its terminal state: exactly
// one terminal transition, at most one refund, one end notification.
func (r *Runner) runOffer(ctx context.Context, task *types.GenerationTask, offer *types.Offer) offerOutcome {
	pctx := progress.Context{
		TaskID:      task.ID,
		OfferID:     offer.ID,
		OfferIndex:  offer.OfferIndex,
		TotalOffers: task.TotalOffers,
		SourceURL:   offer.SourceURL,
	}

	source, sourceLang, err := r.sourceDocument(ctx, task)
	var outcome *phases.RecomposeOutcome
	if err == nil {
		oc := &phases.OfferContext{
			Task:           task,
			Offer:          offer,
			Progress:       pctx,
			SourceLanguage: sourceLang,
			TargetLanguage: sourceLang,
		}
		outcome, err = r.processor.ProcessOffer(ctx, oc, source)
		pctx = oc.Progress
	}

	finalCtx := context.WithoutCancel(ctx)
	if err == nil {
		if _, dbErr := r.store.FinishOffer(finalCtx, offer.ID, types.StatusCompleted, ""); dbErr != nil {
			r.log.Error().Err(dbErr).Stringer("offer_id", offer.ID).Msg("failed to finish offer")
		}
		if dbErr := r.store.IncrementCompletedOffers(finalCtx, task.ID); dbErr != nil {
			r.log.Warn().Err(dbErr).Msg("failed to count completed offer")
		}
		r.emitter.OfferCompleted(finalCtx, task.UserID, pctx, outcome.DocumentName)
		return offerOutcome{success: true, status: types.StatusCompleted}
	}

	status := types.StatusFailed
	reason := "generation_failed"
	if retry.IsCancelled(err) || ctx.Err() != nil {
		status = types.StatusCancelled
		reason = "generation_cancelled"
	}
	r.log.Error().Err(err).
		Stringer("offer_id", offer.ID).
		Str("status", string(status)).
		Msg("offer terminated")

	if _, dbErr := r.store.FinishOffer(finalCtx, offer.ID, status, err.Error()); dbErr != nil {
		r.log.Error().Err(dbErr).Stringer("offer_id", offer.ID).Msg("failed to finish offer")
	}

	refund := r.credits.Refund(finalCtx, task.ID, offer.ID, task.UserID, reason)
	r.emitter.OfferFailed(finalCtx, task.UserID, pctx, string(status), err.Error(), refund.Success)
	return offerOutcome{status: status, errMsg: err.Error(), refunded: refund.Amount}
}

// sweepCancelled marks every still-unfinished offer cancelled with its
// own refund. Completed offers are untouched.
func (r *Runner) sweepCancelled(ctx context.Context, task *types.GenerationTask) int {
	unfinished, err := r.store.ListUnfinishedOffers(ctx, task.ID)
	if err != nil {
		r.log.Error().Err(err).Stringer("task_id", task.ID).Msg("failed to list unfinished offers")
		return 0
	}

	refunded := 0
	for i := range unfinished {
		offer := &unfinished[i]
		if _, err := r.store.FinishOffer(ctx, offer.ID, types.StatusCancelled, "task cancelled"); err != nil {
			r.log.Error().Err(err).Stringer("offer_id", offer.ID).Msg("failed to cancel offer")
			continue
		}
		refund := r.credits.Refund(ctx, task.ID, offer.ID, task.UserID, "generation_cancelled")
		refunded += refund.Amount
		r.emitter.OfferFailed(ctx, task.UserID, progress.Context{
			TaskID:      task.ID,
			OfferID:     offer.ID,
			OfferIndex:  offer.OfferIndex,
			TotalOffers: task.TotalOffers,
		}, string(types.StatusCancelled), "task cancelled", refund.Success)
	}
	return refunded
}

// sourceDocument loads the task's base résumé and resolves its language.
func (r *Runner) sourceDocument(ctx context.Context, task *types.GenerationTask) (*types.ResumeDocument, string, error) {
	doc, err := r.store.GetDocument(ctx, task.SourceDocumentID)
	if err != nil {
		return nil, "", err
	}
	if doc == nil {
		return nil, "", fmt.Errorf("source document %s not found", task.SourceDocumentID)
	}
	lang := doc.Language
	if !language.Known(lang) {
		lang = language.DefaultCode
	}
	return &doc.Content, lang, nil
}

// mirrorBackground best-effort mirrors the terminal status to the
// external background-task record. A record already cancelled from the
// outside is never overwritten with a different status.
func (r *Runner) mirrorBackground(ctx context.Context, taskID uuid.UUID, status types.TaskStatus, result *RunResult) {
	current, err := r.store.GetBackgroundTaskStatus(ctx, taskID)
	if err == nil && current == string(types.StatusCancelled) && status != types.StatusCancelled {
		r.log.Debug().Stringer("task_id", taskID).Msg("background task already cancelled, mirror skipped")
		return
	}
	if err := r.store.UpsertBackgroundTask(ctx, taskID, string(status), result); err != nil {
		r.log.Warn().Err(err).Stringer("task_id", taskID).Msg("background task mirror failed")
	}
}
