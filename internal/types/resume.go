// Package types provides type definitions for structured data used throughout the cv-tailor system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// ResumeDocument is a structured résumé with all adaptable sections
type ResumeDocument struct {
	Header     Header          `json:"header"`
	Summary    string          `json:"summary,omitempty"`
	Skills     SkillsSection   `json:"skills"`
	Experience []Experience    `json:"experience,omitempty"`
	Projects   []Project       `json:"projects,omitempty"`
	Education  []Education     `json:"education,omitempty"`
	Languages  []LanguageEntry `json:"languages,omitempty"`
	Extras     []Extra         `json:"extras,omitempty"`
}

// Header holds identity and contact fields plus the document title
type Header struct {
	FullName string   `json:"full_name"`
	Title    string   `json:"title,omitempty"`
	Email    string   `json:"email,omitempty"`
	Phone    string   `json:"phone,omitempty"`
	Location string   `json:"location,omitempty"`
	Links    []string `json:"links,omitempty"`
}

// SkillsSection groups skills into the four fixed categories
type SkillsSection struct {
	HardSkills    []SkillItem `json:"hard_skills,omitempty"`
	SoftSkills    []SkillItem `json:"soft_skills,omitempty"`
	Tools         []SkillItem `json:"tools,omitempty"`
	Methodologies []SkillItem `json:"methodologies,omitempty"`
}

// Category returns the named category slice, or nil for unknown names
func (s *SkillsSection) Category(name string) []SkillItem {
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
	return nil
}

// Skill category names as they appear in documents and postings
const (
	CategoryHardSkills    = "hard_skills"
	CategorySoftSkills    = "soft_skills"
	CategoryTools         = "tools"
	CategoryMethodologies = "methodologies"
)

// SkillCategories lists the four categories in processing order:
// methodologies first so a shared prompt cache is warm for the rest.
var SkillCategories = []string{
	CategoryMethodologies,
	CategoryHardSkills,
	CategorySoftSkills,
	CategoryTools,
}

// SkillItem is one skill entry. Proficiency is nil for categories that
// do not carry one (soft skills, methodologies).
type SkillItem struct {
	Name        string `json:"name"`
	Proficiency *int   `json:"proficiency,omitempty"`
}

// Experience is one work-history item. Title, company and dates are
// identity fields and must survive adaptation unchanged.
type Experience struct {
	Title            string   `json:"title"`
	Company          string   `json:"company"`
	Location         string   `json:"location,omitempty"`
	StartDate        string   `json:"start_date,omitempty"`
	EndDate          string   `json:"end_date,omitempty"`
	Description      string   `json:"description,omitempty"`
	Responsibilities []string `json:"responsibilities,omitempty"`
	Deliverables     []string `json:"deliverables,omitempty"`
	Technologies     []string `json:"technologies,omitempty"`
}

// Project is one project item. A project reshaped from an experience
// keeps the original title/company as an identity snapshot.
type Project struct {
	Name             string   `json:"name"`
	Role             string   `json:"role,omitempty"`
	StartDate        string   `json:"start_date,omitempty"`
	EndDate          string   `json:"end_date,omitempty"`
	Description      string   `json:"description,omitempty"`
	Responsibilities []string `json:"responsibilities,omitempty"`
	Deliverables     []string `json:"deliverables,omitempty"`
	Technologies     []string `json:"technologies,omitempty"`
	MovedFrom        *MovedExperience `json:"moved_from,omitempty"`
}

// MovedExperience records the identity of an experience that
// classification moved into the projects section
type MovedExperience struct {
	Title   string `json:"title"`
	Company string `json:"company"`
	Index   int    `json:"index"`
}

// Education is one education item
type Education struct {
	Degree      string `json:"degree"`
	Field       string `json:"field,omitempty"`
	Institution string `json:"institution,omitempty"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	Description string `json:"description,omitempty"`
}

// LanguageEntry is one spoken-language entry with a free-text proficiency
type LanguageEntry struct {
	Name        string `json:"name"`
	Proficiency string `json:"proficiency,omitempty"`
}

// Extra is a miscellaneous section item (certifications, interests, ...)
type Extra struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}
