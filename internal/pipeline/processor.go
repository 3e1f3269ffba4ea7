// Package pipeline orchestrates adaptation runs: the per-offer phase
// state machine and the task runner that drives offers, concurrency
// slots, cancellation, and compensating refunds.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/cv-tailor/internal/db"
	"github.com/jonathan/cv-tailor/internal/phases"
	"github.com/jonathan/cv-tailor/internal/types"
)

// Store is the persistence surface the pipeline needs on top of what
// the phases already use. *db.DB satisfies it.
type Store interface {
	phases.Store

	GetTask(ctx context.Context, taskID uuid.UUID) (*types.GenerationTask, error)
	StartTask(ctx context.Context, taskID uuid.UUID) (bool, error)
	FinishTask(ctx context.Context, taskID uuid.UUID, status types.TaskStatus, errMsg string) (bool, error)
	IncrementCompletedOffers(ctx context.Context, taskID uuid.UUID) error

	GetOffer(ctx context.Context, offerID uuid.UUID) (*types.Offer, error)
	ListOffers(ctx context.Context, taskID uuid.UUID) ([]types.Offer, error)
	ListUnfinishedOffers(ctx context.Context, taskID uuid.UUID) ([]types.Offer, error)
	SetOfferStatus(ctx context.Context, offerID uuid.UUID, status types.TaskStatus) error
	FinishOffer(ctx context.Context, offerID uuid.UUID, status types.TaskStatus, errMsg string) (bool, error)
	SetOfferBatchResults(ctx context.Context, offerID uuid.UUID, results *types.BatchResults) error

	GetDocument(ctx context.Context, documentID uuid.UUID) (*db.Document, error)
	UpsertBackgroundTask(ctx context.Context, taskID uuid.UUID, status string, result any) error
	GetBackgroundTaskStatus(ctx context.Context, taskID uuid.UUID) (string, error)
}

var _ Store = (*db.DB)(nil)

// Processor drives one offer through the phase state machine:
// extracting, classifying, the parallel batches, summary, recompose.
type Processor struct {
	store  Store
	phases *phases.Runner
	log    zerolog.Logger
}

// NewProcessor wires a processor around a phase runner.
func NewProcessor(store Store, runner *phases.Runner, log zerolog.Logger) *Processor {
	return &Processor{
		store:  store,
		phases: runner,
		log:    log.With().Str("component", "processor").Logger(),
	}
}

// ProcessOffer runs every phase for one offer and returns the persisted
// document outcome. The caller owns the offer's terminal transition;
// ProcessOffer only moves it through the intermediate states.
func (p *Processor) ProcessOffer(ctx context.Context, oc *phases.OfferContext, source *types.ResumeDocument) (*phases.RecomposeOutcome, error) {
	if err := p.store.SetOfferStatus(ctx, oc.Offer.ID, types.StatusExtracting); err != nil {
		return nil, err
	}

	posting, err := p.phases.Extract(ctx, oc)
	if err != nil {
		return nil, err
	}
	if posting == nil {
		return nil, fmt.Errorf("job posting not found after extraction")
	}
	if posting.Language != "" {
		oc.TargetLanguage = posting.Language
	}
	oc.Progress.JobTitle = posting.Title

	if err := p.store.SetOfferStatus(ctx, oc.Offer.ID, types.StatusRunning); err != nil {
		return nil, err
	}

	classification, err := p.phases.Classify(ctx, oc, source, posting)
	if err != nil {
		return nil, err
	}
	classified := phases.ApplyClassification(source, classification)

	batch, err := p.runBatches(ctx, oc, classified, posting)
	if err != nil {
		return nil, err
	}

	summary, err := p.phases.Summary(ctx, oc, classified, posting, batch)
	if err != nil {
		return nil, err
	}
	batch.Summary = summary

	if err := p.store.SetOfferBatchResults(ctx, oc.Offer.ID, batch); err != nil {
		return nil, err
	}

	// The recompose diff and the version-0 snapshot compare against the
	// original document, not the classified one, so classification
	// removals show up in the ledger.
	return p.phases.Recompose(ctx, oc, source, posting, batch)
}

// runBatches fans the six section batches out concurrently and waits on
// the barrier. The first failure cancels the rest.
func (p *Processor) runBatches(ctx context.Context, oc *phases.OfferContext, classified *types.ResumeDocument, posting *types.JobPosting) (*types.BatchResults, error) {
	var mu sync.Mutex
	batch := &types.BatchResults{}
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		result, err := p.phases.BatchExperiences(groupCtx, oc, classified, posting)
		if err != nil {
			return err
		}
		mu.Lock()
		batch.Experiences = result
		mu.Unlock()
		return nil
	})
	group.Go(func() error {
		result, err := p.phases.BatchProjects(groupCtx, oc, classified, posting)
		if err != nil {
			return err
		}
		mu.Lock()
		batch.Projects = result
		mu.Unlock()
		return nil
	})
	group.Go(func() error {
		result, err := p.phases.BatchExtras(groupCtx, oc, classified, posting)
		if err != nil {
			return err
		}
		mu.Lock()
		batch.Extras = result
		mu.Unlock()
		return nil
	})
	group.Go(func() error {
		result, err := p.phases.BatchEducation(groupCtx, oc, classified, posting)
		if err != nil {
			return err
		}
		mu.Lock()
		batch.Education = result
		mu.Unlock()
		return nil
	})
	group.Go(func() error {
		result, err := p.phases.BatchLanguages(groupCtx, oc, classified, posting)
		if err != nil {
			return err
		}
		mu.Lock()
		batch.Languages = result
		mu.Unlock()
		return nil
	})
	group.Go(func() error {
		result, err := p.phases.BatchSkills(groupCtx, oc, classified, posting)
		if err != nil {
			return err
		}
		mu.Lock()
		batch.Skills = result
		mu.Unlock()
		return nil
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return batch, nil
}
