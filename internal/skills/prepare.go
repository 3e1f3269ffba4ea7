// Package skills implements the decompose/match/merge algorithm that
// adapts a résumé's skill lists to a job posting.
package skills

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jonathan/cv-tailor/internal/types"
)

// separators split compound skills: "/", "&", ",", "+" plus the words
// "et" and "and"
var separators = regexp.MustCompile(`(?i)[/&,+]|\s+(?:et|and)\s+`)

// compoundExceptions are known compound terms that must stay intact
// despite containing a separator
var compoundExceptions = map[string]bool{
	"ci/cd":      true,
	"ux/ui":      true,
	"ui/ux":      true,
	"r&d":        true,
	"tcp/ip":     true,
	"b2b":        true,
	"b2c":        true,
	"i/o":        true,
	"os/2":       true,
	"os/400":     true,
	"node.js":    true,
	"vue.js":     true,
	"react.js":   true,
	"next.js":    true,
	"nuxt.js":    true,
	"nest.js":    true,
	"express.js": true,
	"c++":        true,
	"c#":         true,
	".net":       true,
	"asp.net":    true,
	"vb.net":     true,
	"f#":         true,
	"q#":         true,
	"j#":         true,
}

// HasProficiency reports whether a category carries proficiency values
func HasProficiency(category string) bool {
	return category == types.CategoryHardSkills || category == types.CategoryTools
}

// PreparedItem is one skill atom after compound splitting
type PreparedItem struct {
	Name             string
	Proficiency      *int
	OriginalPosition int
	IsSeparated      bool
	SeparatedFrom    string
}

// Link ties an atom back to its original parent skill
type Link struct {
	ParentIndex int
	ParentName  string
}

// Prepared holds one category's atoms and their parent links, keyed by
// atom index
type Prepared struct {
	Items   []PreparedItem
	LinkMap map[int]Link
}

// Separate splits each source skill on the separator set unless it is a
// known compound exception. Every resulting atom records its parent;
// atoms shorter than two characters are dropped with a warning.
func Separate(items []types.SkillItem, category string, log zerolog.Logger) Prepared {
	prepared := Prepared{LinkMap: make(map[int]Link)}

	for parentIndex, item := range items {
		if item.Name == "" {
			log.Warn().Str("category", category).Int("index", parentIndex).Msg("empty skill ignored")
			continue
		}

		add := func(p PreparedItem) {
			prepared.Items = append(prepared.Items, p)
			prepared.LinkMap[len(prepared.Items)-1] = Link{ParentIndex: parentIndex, ParentName: item.Name}
		}

		normalized := strings.ToLower(strings.TrimSpace(item.Name))
		if compoundExceptions[normalized] {
			add(PreparedItem{Name: item.Name, Proficiency: item.Proficiency, OriginalPosition: parentIndex})
			continue
		}

		var parts []string
		for _, part := range separators.Split(item.Name, -1) {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				parts = append(parts, trimmed)
			}
		}

		if len(parts) <= 1 {
			add(PreparedItem{Name: item.Name, Proficiency: item.Proficiency, OriginalPosition: parentIndex})
			continue
		}

		for _, part := range parts {
			if len(part) < 2 {
				log.Warn().Str("category", category).Str("part", part).Str("skill", item.Name).Msg("part too short, ignored")
				continue
			}
			add(PreparedItem{
				Name:             part,
				Proficiency:      item.Proficiency,
				OriginalPosition: parentIndex,
				IsSeparated:      true,
				SeparatedFrom:    item.Name,
			})
		}
	}

	return prepared
}

// PrepareAll splits every category of the source skills section
func PrepareAll(skills *types.SkillsSection, log zerolog.Logger) map[string]Prepared {
	out := make(map[string]Prepared, len(types.SkillCategories))
	for _, category := range types.SkillCategories {
		out[category] = Separate(skills.Category(category), category, log)
	}
	return out
}

// Names returns the atom names, the only skill data sent to the
// inference service
func (p Prepared) Names() []string {
	names := make([]string, len(p.Items))
	for i, item := range p.Items {
		names[i] = item.Name
	}
	return names
}

// nameToIndex builds a lowercase name → atom index map for merge
// lookups, keeping the first occurrence on duplicates
func (p Prepared) nameToIndex() map[string]int {
	m := make(map[string]int, len(p.Items))
	for idx, item := range p.Items {
		key := strings.ToLower(strings.TrimSpace(item.Name))
		if _, exists := m[key]; !exists {
			m[key] = idx
		}
	}
	return m
}
