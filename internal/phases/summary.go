package phases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonathan/cv-tailor/internal/language"
	"github.com/jonathan/cv-tailor/internal/llm"
	"github.com/jonathan/cv-tailor/internal/prompts"
	"github.com/jonathan/cv-tailor/internal/retry"
	"github.com/jonathan/cv-tailor/internal/types"
)

// Summary writes the tailored professional summary. It runs after the
// experiences and projects batches because the new summary must be
// grounded in the adapted content, not the source.
func (r *Runner) Summary(ctx context.Context, oc *OfferContext, source *types.ResumeDocument, posting *types.JobPosting, batch *types.BatchResults) (*types.SummaryResult, error) {
	if batch == nil || batch.Experiences == nil || batch.Projects == nil {
		return nil, fmt.Errorf("summary requires adapted experiences and projects")
	}

	r.emit(ctx, oc, PhaseSummary, "summary", "running")

	system := prompts.Format(prompts.MustGet("adaptation.json", "summary_system"), map[string]string{
		"LanguageInstruction": language.Instruction(language.Name(oc.TargetLanguage)),
	})
	user := prompts.Format(prompts.MustGet("adaptation.json", "summary_user"), map[string]string{
		"PostingJSON":     postingJSON(posting),
		"SourceSummary":   source.Summary,
		"ExperiencesJSON": mustJSON(batch.Experiences.Items),
		"ProjectsJSON":    mustJSON(batch.Projects.Items),
	})

	input := map[string]int{
		"experience_count": len(batch.Experiences.Items),
		"project_count":    len(batch.Projects.Items),
	}
	result, err := runStep(ctx, r, oc, types.SubtaskBatchSummary, input,
		func(ctx context.Context, attempt int) (stepResult[*types.SummaryResult], error) {
			var zero stepResult[*types.SummaryResult]

			resp, err := r.client.Complete(ctx, llm.Request{
				Feature:     llm.FeatureBatch,
				System:      system,
				User:        user,
				Schema:      llm.NewSchema("summary", prompts.MustSchema("summary")),
				Temperature: 0.3,
			})
			if err != nil {
				return zero, err
			}
			if ctx.Err() != nil {
				return zero, retry.ErrCancelled
			}

			var parsed types.SummaryResult
			if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
				return zero, fmt.Errorf("failed to parse summary: %w", err)
			}
			if parsed.Text == "" {
				return zero, fmt.Errorf("summary came back empty")
			}
			for i := range parsed.Changes {
				if parsed.Changes[i].Section == "" {
					parsed.Changes[i].Section = "summary"
				}
			}

			return stepResult[*types.SummaryResult]{
				value:  &parsed,
				output: []byte(resp.Content),
				model:  resp.Model,
				usage:  resp.Usage,
			}, nil
		})
	if err != nil {
		return nil, fmt.Errorf("summary failed: %w", err)
	}

	r.emit(ctx, oc, PhaseSummary, "summary", "completed")
	return result, nil
}
