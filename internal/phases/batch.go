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

// batchSection runs the shared section-adaptation call for one section.
// Empty sections cost nothing: the items pass through with no call made.
func batchSection[T any](ctx context.Context, r *Runner, oc *OfferContext, subtaskType types.SubtaskType, sectionName string, items []T, posting *types.JobPosting, targetLang string) ([]T, []types.Change, error) {
	if len(items) == 0 {
		return items, nil, nil
	}

	r.emit(ctx, oc, PhaseBatch, sectionName, "running")

	system := prompts.Format(prompts.MustGet("adaptation.json", "batch_section_system"), map[string]string{
		"SectionName":         sectionName,
		"LanguageInstruction": language.Instruction(language.Name(targetLang)),
	})
	user := prompts.Format(prompts.MustGet("adaptation.json", "batch_section_user"), map[string]string{
		"PostingJSON": postingJSON(posting),
		"SectionName": sectionName,
		"ItemsJSON":   mustJSON(items),
	})

	type sectionOutput struct {
		Items   []T            `json:"items"`
		Changes []types.Change `json:"changes"`
	}

	input := map[string]int{"item_count": len(items)}
	parsed, err := runStep(ctx, r, oc, subtaskType, input,
		func(ctx context.Context, attempt int) (stepResult[sectionOutput], error) {
			var zero stepResult[sectionOutput]

			resp, err := r.client.Complete(ctx, llm.Request{
				Feature:     llm.FeatureBatch,
				System:      system,
				User:        user,
				Schema:      llm.NewSchema("batch_section", prompts.MustSchema("batch_section")),
				Temperature: 0.2,
			})
			if err != nil {
				return zero, err
			}
			if ctx.Err() != nil {
				return zero, retry.ErrCancelled
			}

			var out sectionOutput
			if err := json.Unmarshal([]byte(resp.Content), &out); err != nil {
				return zero, fmt.Errorf("failed to parse %s batch: %w", sectionName, err)
			}
			if len(out.Items) != len(items) {
				return zero, fmt.Errorf("%s batch returned %d items, want %d", sectionName, len(out.Items), len(items))
			}
			for i := range out.Changes {
				if out.Changes[i].Section == "" {
					out.Changes[i].Section = sectionName
				}
			}

			return stepResult[sectionOutput]{
				value:  out,
				output: []byte(resp.Content),
				model:  resp.Model,
				usage:  resp.Usage,
			}, nil
		})
	if err != nil {
		return nil, nil, err
	}

	r.emit(ctx, oc, PhaseBatch, sectionName, "completed")
	return parsed.Items, parsed.Changes, nil
}

// BatchExperiences adapts the kept experiences. Identity fields (title,
// company, location, dates) are restored from the source afterwards so a
// drifting model can never rewrite them.
func (r *Runner) BatchExperiences(ctx context.Context, oc *OfferContext, source *types.ResumeDocument, posting *types.JobPosting) (*types.ExperiencesResult, error) {
	items, changes, err := batchSection(ctx, r, oc, types.SubtaskBatchExperience, "experiences", source.Experience, posting, oc.TargetLanguage)
	if err != nil {
		return nil, fmt.Errorf("batch experiences failed: %w", err)
	}
	for i := range items {
		src := source.Experience[i]
		items[i].Title = src.Title
		items[i].Company = src.Company
		items[i].Location = src.Location
		items[i].StartDate = src.StartDate
		items[i].EndDate = src.EndDate
	}
	return &types.ExperiencesResult{Items: items, Changes: changes}, nil
}

// BatchProjects adapts the kept and moved projects. The identity snapshot
// of moved experiences is restored from the source.
func (r *Runner) BatchProjects(ctx context.Context, oc *OfferContext, source *types.ResumeDocument, posting *types.JobPosting) (*types.ProjectsResult, error) {
	items, changes, err := batchSection(ctx, r, oc, types.SubtaskBatchProject, "projects", source.Projects, posting, oc.TargetLanguage)
	if err != nil {
		return nil, fmt.Errorf("batch projects failed: %w", err)
	}
	for i := range items {
		src := source.Projects[i]
		items[i].StartDate = src.StartDate
		items[i].EndDate = src.EndDate
		items[i].MovedFrom = src.MovedFrom
	}
	return &types.ProjectsResult{Items: items, Changes: changes}, nil
}

// BatchExtras adapts the extras section.
func (r *Runner) BatchExtras(ctx context.Context, oc *OfferContext, source *types.ResumeDocument, posting *types.JobPosting) (*types.ExtrasResult, error) {
	items, changes, err := batchSection(ctx, r, oc, types.SubtaskBatchExtras, "extras", source.Extras, posting, oc.TargetLanguage)
	if err != nil {
		return nil, fmt.Errorf("batch extras failed: %w", err)
	}
	return &types.ExtrasResult{Items: items, Changes: changes}, nil
}

// BatchEducation adapts the education section. Degree and field names may
// be translated, but institution names and dates are restored.
func (r *Runner) BatchEducation(ctx context.Context, oc *OfferContext, source *types.ResumeDocument, posting *types.JobPosting) (*types.EducationResult, error) {
	items, changes, err := batchSection(ctx, r, oc, types.SubtaskBatchEducation, "education", source.Education, posting, oc.TargetLanguage)
	if err != nil {
		return nil, fmt.Errorf("batch education failed: %w", err)
	}
	for i := range items {
		src := source.Education[i]
		items[i].Institution = src.Institution
		items[i].StartDate = src.StartDate
		items[i].EndDate = src.EndDate
	}
	return &types.EducationResult{Items: items, Changes: changes}, nil
}

// BatchLanguages adapts the spoken-language entries: names and levels are
// translated into the target language and aligned with the posting's
// requirements. The set of languages never changes here.
func (r *Runner) BatchLanguages(ctx context.Context, oc *OfferContext, source *types.ResumeDocument, posting *types.JobPosting) (*types.LanguagesResult, error) {
	items, changes, err := batchSection(ctx, r, oc, types.SubtaskBatchLanguages, "languages", source.Languages, posting, oc.TargetLanguage)
	if err != nil {
		return nil, fmt.Errorf("batch languages failed: %w", err)
	}
	return &types.LanguagesResult{Items: items, Changes: changes}, nil
}
