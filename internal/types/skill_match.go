// Package types provides type definitions for structured data used throughout the cv-tailor system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// SkillMatch is one match returned by the inference service for a skill
// atom. Ephemeral: never persisted standalone, only folded into the
// batch_skills subtask output.
type SkillMatch struct {
	CVSkill     string `json:"cv_skill"`
	OfferSkill  string `json:"offer_skill,omitempty"`
	Score       int    `json:"score"`
	Reason      string `json:"reason,omitempty"`
	AdaptedName string `json:"adapted_name,omitempty"`
}

// SkillAction is the outcome decided for one skill
type SkillAction string

// Skill outcomes, in ascending merge priority
const (
	ActionDeleted SkillAction = "deleted"
	ActionKept    SkillAction = "kept"
	ActionRenamed SkillAction = "renamed"
)

// Priority returns the merge priority used when regrouping atoms by
// parent: renamed > kept > deleted.
func (a SkillAction) Priority() int {
	switch a {
	case ActionRenamed:
		return 3
	case ActionKept:
		return 2
	default:
		return 1
	}
}

// SkillResult is the final decision for one original skill after
// matching and regrouping
type SkillResult struct {
	Name             string             `json:"name"`
	OriginalName     string             `json:"original_name"`
	Action           SkillAction        `json:"action"`
	Score            int                `json:"score"`
	Reason           string             `json:"reason,omitempty"`
	Proficiency      *int               `json:"proficiency,omitempty"`
	OriginalPosition int                `json:"original_position"`
	SeparatedFrom    string             `json:"separated_from,omitempty"`
	ConsolidatedFrom []ConsolidatedSkill `json:"consolidated_from,omitempty"`
}

// ConsolidatedSkill preserves the provenance of one source skill merged
// into a consolidated entry
type ConsolidatedSkill struct {
	OriginalName string `json:"original_name"`
	Score        int    `json:"score"`
	Reason       string `json:"reason,omitempty"`
	Proficiency  *int   `json:"proficiency,omitempty"`
}

// AdaptedSkills is the full skills-phase output, one result list per category
type AdaptedSkills struct {
	HardSkills    []SkillResult `json:"hard_skills,omitempty"`
	SoftSkills    []SkillResult `json:"soft_skills,omitempty"`
	Tools         []SkillResult `json:"tools,omitempty"`
	Methodologies []SkillResult `json:"methodologies,omitempty"`
}

// Category returns the named category's results
func (a *AdaptedSkills) Category(name string) []SkillResult {
	switch name {
	case CategoryHardSkills:
		return a.HardSkills
	case CategorySoftSkills:
		return a.SoftSkills
	case CategoryTools:
		return a.Tools
	case CategoryMethodologies:
		return a.Methodologies
	}
	return nil
}

// SetCategory replaces the named category's results
func (a *AdaptedSkills) SetCategory(name string, results []SkillResult) {
	switch name {
	case CategoryHardSkills:
		a.HardSkills = results
	case CategorySoftSkills:
		a.SoftSkills = results
	case CategoryTools:
		a.Tools = results
	case CategoryMethodologies:
		a.Methodologies = results
	}
}
