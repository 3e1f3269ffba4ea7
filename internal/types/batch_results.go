// Package types provides type definitions for structured data used throughout the cv-tailor system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// ClassificationAction labels what classification decided for one
// source experience or project
type ClassificationAction string

// Classification actions
const (
	ClassifyKeep           ClassificationAction = "KEEP"
	ClassifyRemove         ClassificationAction = "REMOVE"
	ClassifyMoveToProjects ClassificationAction = "MOVE_TO_PROJECTS"
)

// ClassifiedItem is the decision for one indexed source item
type ClassifiedItem struct {
	Index  int                  `json:"index"`
	Action ClassificationAction `json:"action"`
	Reason string               `json:"reason,omitempty"`
}

// ClassificationResult holds the classify-phase decisions
type ClassificationResult struct {
	Experiences []ClassifiedItem `json:"experiences,omitempty"`
	Projects    []ClassifiedItem `json:"projects,omitempty"`
}

// ExperiencesResult is the adapted experiences batch output
type ExperiencesResult struct {
	Items   []Experience `json:"items"`
	Changes []Change     `json:"changes,omitempty"`
}

// ProjectsResult is the adapted projects batch output
type ProjectsResult struct {
	Items   []Project `json:"items"`
	Changes []Change  `json:"changes,omitempty"`
}

// ExtrasResult is the adapted extras batch output
type ExtrasResult struct {
	Items   []Extra  `json:"items"`
	Changes []Change `json:"changes,omitempty"`
}

// EducationResult is the adapted education batch output
type EducationResult struct {
	Items   []Education `json:"items"`
	Changes []Change    `json:"changes,omitempty"`
}

// LanguagesResult is the adapted languages batch output
type LanguagesResult struct {
	Items   []LanguageEntry `json:"items"`
	Changes []Change        `json:"changes,omitempty"`
}

// SkillsResult is the skills batch output
type SkillsResult struct {
	Skills  AdaptedSkills `json:"skills"`
	Changes []Change      `json:"changes,omitempty"`
}

// SummaryResult is the summary batch output
type SummaryResult struct {
	Text    string   `json:"text"`
	Changes []Change `json:"changes,omitempty"`
}

// BatchResults collects the outputs of all batch phases for one offer.
// A nil field means the corresponding phase has not completed.
type BatchResults struct {
	Experiences *ExperiencesResult `json:"experiences,omitempty"`
	Projects    *ProjectsResult    `json:"projects,omitempty"`
	Extras      *ExtrasResult      `json:"extras,omitempty"`
	Education   *EducationResult   `json:"education,omitempty"`
	Languages   *LanguagesResult   `json:"languages,omitempty"`
	Skills      *SkillsResult      `json:"skills,omitempty"`
	Summary     *SummaryResult     `json:"summary,omitempty"`
}

// Missing returns the names of batch sections that have no result yet.
// Recomposition requires this to be empty before it starts.
func (r *BatchResults) Missing() []string {
	var missing []string
	if r == nil {
		return []string{"experiences", "projects", "extras", "education", "languages", "skills", "summary"}
	}
	if r.Experiences == nil {
		missing = append(missing, "experiences")
	}
	if r.Projects == nil {
		missing = append(missing, "projects")
	}
	if r.Extras == nil {
		missing = append(missing, "extras")
	}
	if r.Education == nil {
		missing = append(missing, "education")
	}
	if r.Languages == nil {
		missing = append(missing, "languages")
	}
	if r.Skills == nil {
		missing = append(missing, "skills")
	}
	if r.Summary == nil {
		missing = append(missing, "summary")
	}
	return missing
}

// AllChanges concatenates the change lists of every completed batch
func (r *BatchResults) AllChanges() []Change {
	if r == nil {
		return nil
	}
	var out []Change
	if r.Experiences != nil {
		out = append(out, r.Experiences.Changes...)
	}
	if r.Projects != nil {
		out = append(out, r.Projects.Changes...)
	}
	if r.Extras != nil {
		out = append(out, r.Extras.Changes...)
	}
	if r.Education != nil {
		out = append(out, r.Education.Changes...)
	}
	if r.Languages != nil {
		out = append(out, r.Languages.Changes...)
	}
	if r.Skills != nil {
		out = append(out, r.Skills.Changes...)
	}
	if r.Summary != nil {
		out = append(out, r.Summary.Changes...)
	}
	return out
}
