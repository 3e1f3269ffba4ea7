// Package diffreview builds the reviewable change ledger for an adapted
// document: a programmatic diff between source and adapted content, merged
// with the modifications the inference service reported, with removed+added
// pairs that are really translations collapsed into a single entry.
package diffreview

import "strings"

// Similarity decides whether two item names likely denote the same concept
// in different languages. It is pluggable so the heuristic can be replaced
// without touching the merge algorithm.
type Similarity interface {
	LikelyTranslation(a, b string) bool
}

// knownTranslations maps common English skill names to their French form.
// Checked in both directions.
var knownTranslations = map[string]string{
	"multicultural adaptability": "adaptabilite multiculturelle",
	"project management":         "gestion de projet",
	"change management":          "gestion du changement",
	"team player":                "esprit d'equipe",
	"data analytics":             "analyse de donnees",
	"data analysis":              "analyse de donnees",
	"customer success":           "succes client",
	"business transformation":    "transformation d'entreprise",
	"digital transformation":     "transformation digitale",
	"strategic analysis":         "analyse strategique",
	"customer-oriented":          "orientation client",
	"problem solving":            "resolution de problemes",
	"teamwork":                   "travail d'equipe",
	"adaptability":               "adaptabilite",
	"creativity":                 "creativite",
	"time management":            "gestion du temps",
	"critical thinking":          "esprit critique",
	"attention to detail":        "rigueur",
	"self-motivated":             "autonomie",
	"work ethic":                 "ethique professionnelle",
}

// WordOverlap is the default similarity strategy: a hardcoded dictionary of
// common skill translations plus a shared-substring check for short names.
type WordOverlap struct{}

// LikelyTranslation reports whether a and b are probably the same skill in
// two languages. Identical strings are not translations.
func (WordOverlap) LikelyTranslation(a, b string) bool {
	s1 := strings.ToLower(strings.TrimSpace(a))
	s2 := strings.ToLower(strings.TrimSpace(b))
	if s1 == "" || s2 == "" || s1 == s2 {
		return false
	}

	if knownTranslations[s1] == s2 || knownTranslations[s2] == s1 {
		return true
	}

	words1 := strings.Fields(s1)
	words2 := strings.Fields(s2)

	// Long strings are sentences, not skill names.
	if len(words1) > 4 || len(words2) > 4 {
		return false
	}

	// A shared significant word (>3 chars, substring either way) is enough
	// for short skill names like "communication" / "communication skills".
	for _, w1 := range words1 {
		if len(w1) <= 3 {
			continue
		}
		for _, w2 := range words2 {
			if len(w2) <= 3 {
				continue
			}
			if strings.Contains(w1, w2) || strings.Contains(w2, w1) {
				return true
			}
		}
	}
	return false
}
