package diffreview

import (
	"fmt"
	"strings"

	"github.com/jonathan/cv-tailor/internal/types"
)

// Diff compares an adapted document against its source and returns the
// differences the inference service did not report itself: removed and added
// items per section, plus summary and header title rewrites. Field-level
// rewrites inside kept items are expected to arrive as inference-reported
// changes and are not re-derived here.
func Diff(adapted, source *types.ResumeDocument) []types.Change {
	if adapted == nil || source == nil {
		return nil
	}

	var changes []types.Change

	if strings.TrimSpace(adapted.Summary) != strings.TrimSpace(source.Summary) {
		changes = append(changes, types.Change{
			Section: "summary",
			Field:   "description",
			Type:    types.ChangeModified,
			Before:  source.Summary,
			After:   adapted.Summary,
			Reason:  "Adaptation au poste ciblé",
		})
	}

	if adapted.Header.Title != source.Header.Title {
		changes = append(changes, types.Change{
			Section: "header",
			Field:   "title",
			Type:    types.ChangeModified,
			Before:  source.Header.Title,
			After:   adapted.Header.Title,
			Reason:  "Alignement avec le poste ciblé",
		})
	}

	for _, category := range types.SkillCategories {
		changes = append(changes, diffSkillItems(
			category,
			adapted.Skills.Category(category),
			source.Skills.Category(category),
		)...)
	}

	changes = append(changes, diffExperiences(adapted, source)...)
	changes = append(changes, diffProjects(adapted, source)...)
	changes = append(changes, diffNamedItems("education", educationNames(adapted.Education), educationNames(source.Education))...)
	changes = append(changes, diffLanguages(adapted.Languages, source.Languages)...)
	changes = append(changes, diffNamedItems("extras", extraNames(adapted.Extras), extraNames(source.Extras))...)

	return changes
}

// diffSkillItems detects skills present on one side only, keyed by
// case-insensitive name.
func diffSkillItems(category string, adapted, source []types.SkillItem) []types.Change {
	var changes []types.Change

	sourceNames := make(map[string]string, len(source))
	for _, item := range source {
		sourceNames[strings.ToLower(item.Name)] = item.Name
	}
	adaptedNames := make(map[string]string, len(adapted))
	for _, item := range adapted {
		adaptedNames[strings.ToLower(item.Name)] = item.Name
	}

	for _, item := range adapted {
		if _, ok := sourceNames[strings.ToLower(item.Name)]; !ok {
			changes = append(changes, types.Change{
				Section:  "skills",
				Field:    category,
				ItemName: item.Name,
				Type:     types.ChangeAdded,
				After:    item.Name,
				Reason:   "Compétence pertinente pour le poste",
			})
		}
	}
	for _, item := range source {
		if _, ok := adaptedNames[strings.ToLower(item.Name)]; !ok {
			changes = append(changes, types.Change{
				Section:  "skills",
				Field:    category,
				ItemName: item.Name,
				Type:     types.ChangeRemoved,
				Before:   item.Name,
				Reason:   "Non pertinent pour le poste ciblé",
			})
		}
	}
	return changes
}

// diffExperiences flags source experiences that no longer appear in the
// adapted document: moved to projects when an adapted project records the
// source index, removed otherwise. Identity is title+company, with a
// company+start-date fallback for retitled entries.
func diffExperiences(adapted, source *types.ResumeDocument) []types.Change {
	var changes []types.Change

	movedIndexes := make(map[int]string)
	for _, proj := range adapted.Projects {
		if proj.MovedFrom != nil {
			movedIndexes[proj.MovedFrom.Index] = proj.Name
		}
	}

	for i, src := range source.Experience {
		if projName, moved := movedIndexes[i]; moved {
			idx := i
			changes = append(changes, types.Change{
				Section:         "experience",
				ItemName:        src.Title,
				ExperienceIndex: &idx,
				Type:            types.ChangeMoved,
				Before:          fmt.Sprintf("%s (%s)", src.Title, src.Company),
				After:           projName,
				Reason:          "Projet personnel pertinent pour le poste",
			})
			continue
		}
		if matchExperience(src, adapted.Experience) == -1 {
			idx := i
			changes = append(changes, types.Change{
				Section:         "experience",
				ItemName:        src.Title,
				ExperienceIndex: &idx,
				Type:            types.ChangeRemoved,
				Before:          fmt.Sprintf("%s (%s)", src.Title, src.Company),
				Reason:          "Non pertinente pour le poste ciblé",
			})
		}
	}
	return changes
}

func matchExperience(exp types.Experience, list []types.Experience) int {
	title := strings.ToLower(strings.TrimSpace(exp.Title))
	company := strings.ToLower(strings.TrimSpace(exp.Company))
	for i, e := range list {
		if strings.ToLower(strings.TrimSpace(e.Title)) == title &&
			strings.ToLower(strings.TrimSpace(e.Company)) == company {
			return i
		}
	}
	if company != "" && exp.StartDate != "" {
		for i, e := range list {
			if strings.ToLower(strings.TrimSpace(e.Company)) == company &&
				e.StartDate == exp.StartDate {
				return i
			}
		}
	}
	return -1
}

// diffProjects detects added and removed projects by name. Projects created
// by a move from experiences are reported as moves, not additions.
func diffProjects(adapted, source *types.ResumeDocument) []types.Change {
	var changes []types.Change

	sourceNames := make(map[string]bool, len(source.Projects))
	for _, p := range source.Projects {
		sourceNames[strings.ToLower(p.Name)] = true
	}
	adaptedNames := make(map[string]bool, len(adapted.Projects))
	for _, p := range adapted.Projects {
		adaptedNames[strings.ToLower(p.Name)] = true
	}

	for _, p := range adapted.Projects {
		if p.MovedFrom != nil {
			continue
		}
		if !sourceNames[strings.ToLower(p.Name)] {
			changes = append(changes, types.Change{
				Section:  "projects",
				ItemName: p.Name,
				Type:     types.ChangeAdded,
				After:    p.Name,
				Reason:   "Projet pertinent pour le poste",
			})
		}
	}
	for _, p := range source.Projects {
		if !adaptedNames[strings.ToLower(p.Name)] {
			changes = append(changes, types.Change{
				Section:  "projects",
				ItemName: p.Name,
				Type:     types.ChangeRemoved,
				Before:   p.Name,
				Reason:   "Non pertinent pour le poste ciblé",
			})
		}
	}
	return changes
}

// diffLanguages detects added, removed, and level-adjusted language entries.
func diffLanguages(adapted, source []types.LanguageEntry) []types.Change {
	var changes []types.Change

	sourceByName := make(map[string]types.LanguageEntry, len(source))
	for _, l := range source {
		sourceByName[strings.ToLower(l.Name)] = l
	}
	adaptedByName := make(map[string]types.LanguageEntry, len(adapted))
	for _, l := range adapted {
		adaptedByName[strings.ToLower(l.Name)] = l
	}

	for _, l := range adapted {
		src, ok := sourceByName[strings.ToLower(l.Name)]
		if !ok {
			changes = append(changes, types.Change{
				Section:  "languages",
				ItemName: l.Name,
				Type:     types.ChangeAdded,
				After:    l.Name,
				Reason:   "Langue pertinente pour le poste",
			})
			continue
		}
		if src.Proficiency != l.Proficiency {
			changes = append(changes, types.Change{
				Section:  "languages",
				ItemName: l.Name,
				Type:     types.ChangeModified,
				Before:   src.Proficiency,
				After:    l.Proficiency,
				Reason:   "Adaptation au niveau requis pour le poste",
			})
		}
	}
	for _, l := range source {
		if _, ok := adaptedByName[strings.ToLower(l.Name)]; !ok {
			changes = append(changes, types.Change{
				Section:  "languages",
				ItemName: l.Name,
				Type:     types.ChangeRemoved,
				Before:   l.Name,
				Reason:   "Non pertinent pour le poste ciblé",
			})
		}
	}
	return changes
}

// diffNamedItems is the generic added/removed comparison for sections whose
// items are identified by a single display name.
func diffNamedItems(section string, adapted, source []string) []types.Change {
	var changes []types.Change

	sourceSet := make(map[string]bool, len(source))
	for _, n := range source {
		sourceSet[strings.ToLower(n)] = true
	}
	adaptedSet := make(map[string]bool, len(adapted))
	for _, n := range adapted {
		adaptedSet[strings.ToLower(n)] = true
	}

	for _, n := range adapted {
		if !sourceSet[strings.ToLower(n)] {
			changes = append(changes, types.Change{
				Section:  section,
				ItemName: n,
				Type:     types.ChangeAdded,
				After:    n,
				Reason:   "Pertinent pour le poste ciblé",
			})
		}
	}
	for _, n := range source {
		if !adaptedSet[strings.ToLower(n)] {
			changes = append(changes, types.Change{
				Section:  section,
				ItemName: n,
				Type:     types.ChangeRemoved,
				Before:   n,
				Reason:   "Non pertinent pour le poste ciblé",
			})
		}
	}
	return changes
}

func educationNames(items []types.Education) []string {
	names := make([]string, 0, len(items))
	for _, e := range items {
		name := e.Degree
		if e.Institution != "" {
			name = e.Degree + " - " + e.Institution
		}
		names = append(names, name)
	}
	return names
}

func extraNames(items []types.Extra) []string {
	names := make([]string, 0, len(items))
	for _, e := range items {
		names = append(names, e.Title)
	}
	return names
}
