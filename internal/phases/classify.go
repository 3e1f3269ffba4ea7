package phases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jonathan/cv-tailor/internal/llm"
	"github.com/jonathan/cv-tailor/internal/prompts"
	"github.com/jonathan/cv-tailor/internal/retry"
	"github.com/jonathan/cv-tailor/internal/types"
)

// indexed wraps an item with its zero-based position so the model can
// answer in terms of stable indexes instead of echoing content back.
type indexedExperience struct {
	Index int `json:"index"`
	types.Experience
}

type indexedProject struct {
	Index int `json:"index"`
	types.Project
}

// Classify labels each source experience KEEP / REMOVE / MOVE_TO_PROJECTS
// and each source project KEEP / REMOVE in one inference call. Decisions
// referencing indexes outside the source are dropped. The result is
// persisted on the offer before being returned.
func (r *Runner) Classify(ctx context.Context, oc *OfferContext, source *types.ResumeDocument, posting *types.JobPosting) (*types.ClassificationResult, error) {
	if len(source.Experience) == 0 && len(source.Projects) == 0 {
		return &types.ClassificationResult{}, nil
	}

	r.emit(ctx, oc, PhaseClassify, "classify", "running")

	experiences := make([]indexedExperience, len(source.Experience))
	for i, exp := range source.Experience {
		experiences[i] = indexedExperience{Index: i, Experience: exp}
	}
	projects := make([]indexedProject, len(source.Projects))
	for i, proj := range source.Projects {
		projects[i] = indexedProject{Index: i, Project: proj}
	}

	input := map[string]int{
		"experience_count": len(source.Experience),
		"project_count":    len(source.Projects),
	}
	result, err := runStep(ctx, r, oc, types.SubtaskClassify, input,
		func(ctx context.Context, attempt int) (stepResult[*types.ClassificationResult], error) {
			var zero stepResult[*types.ClassificationResult]

			user := prompts.Format(prompts.MustGet("adaptation.json", "classify_user"), map[string]string{
				"PostingJSON":     postingJSON(posting),
				"ExperiencesJSON": mustJSON(experiences),
				"ProjectsJSON":    mustJSON(projects),
			})

			resp, err := r.client.Complete(ctx, llm.Request{
				Feature:     llm.FeatureClassify,
				System:      prompts.MustGet("adaptation.json", "classify_system"),
				User:        user,
				Schema:      llm.NewSchema("classification", prompts.MustSchema("classification")),
				Temperature: 0.1,
			})
			if err != nil {
				return zero, err
			}
			if ctx.Err() != nil {
				return zero, retry.ErrCancelled
			}

			var parsed types.ClassificationResult
			if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
				return zero, fmt.Errorf("failed to parse classification: %w", err)
			}
			validated := validateClassification(&parsed, len(source.Experience), len(source.Projects), r.log)

			return stepResult[*types.ClassificationResult]{
				value:  validated,
				output: []byte(resp.Content),
				model:  resp.Model,
				usage:  resp.Usage,
			}, nil
		})
	if err != nil {
		return nil, fmt.Errorf("classification failed: %w", err)
	}

	if err := r.store.SetOfferClassification(ctx, oc.Offer.ID, result); err != nil {
		return nil, err
	}

	r.emit(ctx, oc, PhaseClassify, "classify", "completed")
	return result, nil
}

// validateClassification drops decisions for indexes the source does not
// have, so a hallucinated index can never surface a phantom item.
func validateClassification(result *types.ClassificationResult, experienceCount, projectCount int, log zerolog.Logger) *types.ClassificationResult {
	valid := &types.ClassificationResult{}
	for _, item := range result.Experiences {
		if item.Index < 0 || item.Index >= experienceCount {
			log.Warn().Int("index", item.Index).Msg("classification references unknown experience, dropped")
			continue
		}
		valid.Experiences = append(valid.Experiences, item)
	}
	for _, item := range result.Projects {
		if item.Index < 0 || item.Index >= projectCount {
			log.Warn().Int("index", item.Index).Msg("classification references unknown project, dropped")
			continue
		}
		valid.Projects = append(valid.Projects, item)
	}
	return valid
}

// ApplyClassification filters the source document to the kept items and
// reshapes MOVE_TO_PROJECTS experiences into project records carrying an
// identity snapshot of their origin. The returned document shares no
// slices with the source.
func ApplyClassification(source *types.ResumeDocument, result *types.ClassificationResult) *types.ResumeDocument {
	filtered := *source
	filtered.Experience = nil
	filtered.Projects = nil

	var moved []types.Project
	for _, decision := range result.Experiences {
		exp := source.Experience[decision.Index]
		switch decision.Action {
		case types.ClassifyKeep:
			filtered.Experience = append(filtered.Experience, exp)
		case types.ClassifyMoveToProjects:
			moved = append(moved, experienceToProject(exp, decision.Index))
		}
	}

	for _, decision := range result.Projects {
		if decision.Action == types.ClassifyKeep {
			filtered.Projects = append(filtered.Projects, source.Projects[decision.Index])
		}
	}
	filtered.Projects = append(filtered.Projects, moved...)

	return &filtered
}

// experienceToProject reshapes an experience into a project record
func experienceToProject(exp types.Experience, index int) types.Project {
	name := exp.Title
	if name == "" {
		name = exp.Company
	}
	description := exp.Description
	if description == "" {
		description = strings.Join(exp.Responsibilities, ". ")
	}
	return types.Project{
		Name:             name,
		StartDate:        exp.StartDate,
		EndDate:          exp.EndDate,
		Description:      description,
		Responsibilities: exp.Responsibilities,
		Deliverables:     exp.Deliverables,
		Technologies:     exp.Technologies,
		MovedFrom: &types.MovedExperience{
			Title:   exp.Title,
			Company: exp.Company,
			Index:   index,
		},
	}
}
