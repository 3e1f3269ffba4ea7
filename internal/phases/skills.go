package phases

import (
	"context"
	"strings"

	"github.com/jonathan/cv-tailor/internal/llm"
	"github.com/jonathan/cv-tailor/internal/skills"
	"github.com/jonathan/cv-tailor/internal/types"
)

// BatchSkills runs the per-category skill matching and regrouping. The
// four categories go out as separate calls (see skills.Matcher); the
// whole fan-out is one subtask, retried as a unit.
func (r *Runner) BatchSkills(ctx context.Context, oc *OfferContext, source *types.ResumeDocument, posting *types.JobPosting) (*types.SkillsResult, error) {
	preparedAll := skills.PrepareAll(&source.Skills, r.log)

	total := 0
	counts := make(map[string]int, len(types.SkillCategories))
	for _, category := range types.SkillCategories {
		counts[category] = len(preparedAll[category].Items)
		total += counts[category]
	}
	if total == 0 {
		return &types.SkillsResult{}, nil
	}

	r.emit(ctx, oc, PhaseBatch, "skills", "running")

	langs := skills.Languages{
		CV:        oc.SourceLanguage,
		Job:       posting.Language,
		Interface: oc.TargetLanguage,
	}

	result, err := runStep(ctx, r, oc, types.SubtaskBatchSkills, counts,
		func(ctx context.Context, attempt int) (stepResult[*types.SkillsResult], error) {
			var zero stepResult[*types.SkillsResult]

			matcher := skills.NewMatcher(r.client, 0, r.log)
			matches, err := matcher.MatchAll(ctx, preparedAll, &posting.Skills, langs)
			if err != nil {
				return zero, err
			}

			adapted := skills.BuildResult(matches, preparedAll, &source.Skills, oc.TargetLanguage, r.log)
			value := &types.SkillsResult{
				Skills:  *adapted,
				Changes: skillChanges(adapted),
			}

			var usage llm.Usage
			var model string
			for _, match := range matches {
				usage.PromptTokens += match.Usage.PromptTokens
				usage.CompletionTokens += match.Usage.CompletionTokens
				usage.CachedTokens += match.Usage.CachedTokens
				if model == "" {
					model = match.Model
				}
			}

			return stepResult[*types.SkillsResult]{
				value:  value,
				output: []byte(mustJSON(value)),
				model:  model,
				usage:  usage,
			}, nil
		})
	if err != nil {
		return nil, err
	}

	r.emit(ctx, oc, PhaseBatch, "skills", "completed")
	return result, nil
}

// skillChanges derives ledger entries from the per-skill decisions.
// Kept skills produce nothing; renames and consolidations surface as
// modifications, deletions as removals.
func skillChanges(adapted *types.AdaptedSkills) []types.Change {
	var changes []types.Change
	for _, category := range types.SkillCategories {
		for _, result := range adapted.Category(category) {
			switch {
			case len(result.ConsolidatedFrom) > 1:
				names := make([]string, 0, len(result.ConsolidatedFrom))
				for _, src := range result.ConsolidatedFrom {
					names = append(names, src.OriginalName)
				}
				changes = append(changes, types.Change{
					Section:  "skills",
					Field:    category,
					ItemName: result.Name,
					Type:     types.ChangeModified,
					Before:   strings.Join(names, ", "),
					After:    result.Name,
					Reason:   firstNonEmpty(result.Reason, "Regroupement de compétences équivalentes"),
				})
			case result.Action == types.ActionRenamed:
				changes = append(changes, types.Change{
					Section:  "skills",
					Field:    category,
					ItemName: result.Name,
					Type:     types.ChangeModified,
					Before:   result.OriginalName,
					After:    result.Name,
					Reason:   firstNonEmpty(result.Reason, "Alignement avec la terminologie du poste"),
				})
			case result.Action == types.ActionDeleted:
				changes = append(changes, types.Change{
					Section:  "skills",
					Field:    category,
					ItemName: result.OriginalName,
					Type:     types.ChangeRemoved,
					Before:   result.OriginalName,
					Reason:   firstNonEmpty(result.Reason, "Non pertinent pour le poste ciblé"),
				})
			}
		}
	}
	return changes
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
