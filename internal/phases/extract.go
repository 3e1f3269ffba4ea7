package phases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/cv-tailor/internal/language"
	"github.com/jonathan/cv-tailor/internal/llm"
	"github.com/jonathan/cv-tailor/internal/prompts"
	"github.com/jonathan/cv-tailor/internal/retry"
	"github.com/jonathan/cv-tailor/internal/types"
)

// Extract resolves the offer's job posting: a cache hit by source
// identity (URL for URL sources, content hash otherwise) costs nothing;
// otherwise the posting text is fetched if needed, extracted into
// structured form, and cached for future offers with the same source.
func (r *Runner) Extract(ctx context.Context, oc *OfferContext) (*types.JobPosting, error) {
	if oc.Offer.JobPostingID != nil {
		posting, err := r.store.GetJobPosting(ctx, *oc.Offer.JobPostingID)
		if err != nil {
			return nil, err
		}
		if posting != nil {
			return posting, nil
		}
	}

	sourceURL, sourceHash := sourceIdentity(oc.Offer)

	r.emit(ctx, oc, PhaseExtraction, "lookup", "running")
	cached, err := r.store.FindJobPostingBySource(ctx, sourceURL, sourceHash)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		if err := r.store.SetOfferJobPosting(ctx, oc.Offer.ID, cached.ID); err != nil {
			return nil, err
		}
		r.log.Info().
			Stringer("offer_id", oc.Offer.ID).
			Str("title", cached.Title).
			Msg("job posting resolved from cache")
		r.emit(ctx, oc, PhaseExtraction, "lookup", "completed")
		return cached, nil
	}

	r.emit(ctx, oc, PhaseExtraction, "extract", "running")
	input := map[string]string{"source_url": sourceURL, "source_hash": sourceHash}
	posting, err := runStep(ctx, r, oc, types.SubtaskExtraction, input,
		func(ctx context.Context, attempt int) (stepResult[*types.JobPosting], error) {
			return r.extractOnce(ctx, oc, sourceURL, sourceHash)
		})
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	postingID, err := r.store.SaveJobPosting(ctx, posting)
	if err != nil {
		return nil, err
	}
	posting.ID = postingID
	if err := r.store.SetOfferJobPosting(ctx, oc.Offer.ID, postingID); err != nil {
		return nil, err
	}

	r.emit(ctx, oc, PhaseExtraction, "extract", "completed")
	return posting, nil
}

// extractOnce is one extraction attempt: obtain the posting text, run the
// structured extraction call, then resolve the posting language.
func (r *Runner) extractOnce(ctx context.Context, oc *OfferContext, sourceURL, sourceHash string) (stepResult[*types.JobPosting], error) {
	var zero stepResult[*types.JobPosting]

	text, err := r.postingText(ctx, oc.Offer)
	if err != nil {
		return zero, err
	}

	system := prompts.MustGet("adaptation.json", "extract_system")
	user := prompts.Format(prompts.MustGet("adaptation.json", "extract_user"), map[string]string{
		"PostingText": text,
	})

	resp, err := r.client.Complete(ctx, llm.Request{
		Feature:     llm.FeatureExtract,
		System:      system,
		User:        user,
		Schema:      llm.NewSchema("extraction", prompts.MustSchema("extraction")),
		Temperature: 0.1,
	})
	if err != nil {
		return zero, err
	}
	if ctx.Err() != nil {
		return zero, retry.ErrCancelled
	}

	var posting types.JobPosting
	if err := json.Unmarshal([]byte(resp.Content), &posting); err != nil {
		return zero, fmt.Errorf("failed to parse extraction: %w", err)
	}
	if strings.TrimSpace(posting.Title) == "" {
		return zero, fmt.Errorf("extraction produced no job title")
	}

	posting.SourceURL = sourceURL
	posting.SourceHash = sourceHash
	posting.RawText = text

	detection := language.DetectOfferLanguage(ctx,
		posting.Language, posting.Title, posting.Responsibilities,
		language.DefaultCode, llm.NewLanguageDetector(r.client))
	posting.Language = detection.Code

	r.log.Debug().
		Str("title", posting.Title).
		Str("language", detection.Code).
		Str("language_source", string(detection.Source)).
		Msg("posting extracted")

	return stepResult[*types.JobPosting]{
		value:  &posting,
		output: []byte(resp.Content),
		model:  resp.Model,
		usage:  resp.Usage,
	}, nil
}

// postingText returns the raw posting content: fetched for URL sources,
// supplied verbatim for file and markdown sources.
func (r *Runner) postingText(ctx context.Context, offer *types.Offer) (string, error) {
	if offer.SourceKind == types.SourceURL {
		if r.fetcher == nil {
			return "", fmt.Errorf("URL sources are not enabled")
		}
		return r.fetcher.PostingText(ctx, offer.SourceURL)
	}
	if strings.TrimSpace(offer.SourceContent) == "" {
		return "", fmt.Errorf("offer has no source content")
	}
	return offer.SourceContent, nil
}

// sourceIdentity derives the cache key of an offer's posting source
func sourceIdentity(offer *types.Offer) (sourceURL, sourceHash string) {
	if offer.SourceKind == types.SourceURL {
		return offer.SourceURL, ""
	}
	sum := sha256.Sum256([]byte(offer.SourceContent))
	return "", hex.EncodeToString(sum[:])
}
