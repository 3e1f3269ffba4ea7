// Package types provides type definitions for structured data used throughout the cv-tailor system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"time"

	"github.com/google/uuid"
)

// JobPosting is a structured job posting extracted from a source
type JobPosting struct {
	ID               uuid.UUID       `json:"id"`
	Title            string          `json:"title"`
	Company          string          `json:"company,omitempty"`
	Location         string          `json:"location,omitempty"`
	Language         string          `json:"language,omitempty"`
	SourceURL        string          `json:"source_url,omitempty"`
	SourceHash       string          `json:"source_hash,omitempty"`
	Skills           JobSkills       `json:"skills"`
	Responsibilities []string        `json:"responsibilities,omitempty"`
	Requirements     JobRequirements `json:"requirements"`
	RawText          string          `json:"raw_text,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// JobSkills groups the posting's skills into the same four categories
// as a résumé's skills section
type JobSkills struct {
	HardSkills    JobSkillCategory `json:"hard_skills"`
	SoftSkills    JobSkillCategory `json:"soft_skills"`
	Tools         JobSkillCategory `json:"tools"`
	Methodologies JobSkillCategory `json:"methodologies"`
}

// Category returns the named skill category of the posting
func (s *JobSkills) Category(name string) JobSkillCategory {
	switch name {
	case CategoryHardSkills:
		return s.HardSkills
	case CategorySoftSkills:
		return s.SoftSkills
	case CategoryTools:
		return s.Tools
	case CategoryMethodologies:
		return s.Methodologies
	}
	return JobSkillCategory{}
}

// JobSkillCategory splits one category into required and nice-to-have skills
type JobSkillCategory struct {
	Required   []string `json:"required,omitempty"`
	NiceToHave []string `json:"nice_to_have,omitempty"`
}

// All returns required and nice-to-have skills as one list
func (c JobSkillCategory) All() []string {
	out := make([]string, 0, len(c.Required)+len(c.NiceToHave))
	out = append(out, c.Required...)
	out = append(out, c.NiceToHave...)
	return out
}

// JobRequirements holds non-skill requirements extracted from the posting
type JobRequirements struct {
	Languages []string `json:"languages,omitempty"`
	Education string   `json:"education,omitempty"`
	Years     string   `json:"years,omitempty"`
}
