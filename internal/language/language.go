// Package language provides language detection and naming utilities for
// job postings and résumé documents.
package language

import (
	"context"
	"strings"
)

// DefaultCode is used whenever detection cannot decide
const DefaultCode = "fr"

// names maps a language code to the name used inside prompts
var names = map[string]string{
	"fr": "francais",
	"en": "anglais",
	"de": "allemand",
	"es": "espagnol",
	"it": "italien",
	"pt": "portugais",
	"nl": "neerlandais",
}

// codes maps known language names (several locales) back to a code
var codes = map[string]string{
	"francais":   "fr",
	"français":   "fr",
	"french":     "fr",
	"anglais":    "en",
	"english":    "en",
	"allemand":   "de",
	"german":     "de",
	"deutsch":    "de",
	"espagnol":   "es",
	"spanish":    "es",
	"español":    "es",
	"italien":    "it",
	"italian":    "it",
	"italiano":   "it",
	"portugais":  "pt",
	"portuguese": "pt",
	"português":  "pt",
	"neerlandais": "nl",
	"dutch":       "nl",
	"nederlands":  "nl",
}

// aliases lists, per code, every name that may refer to the language in
// free text. Derived from codes at init.
var aliases = func() map[string][]string {
	out := make(map[string][]string)
	for name, code := range codes {
		out[code] = append(out[code], name)
	}
	return out
}()

// Name returns the prompt-facing name for a language code, defaulting
// to French for unknown codes
func Name(code string) string {
	if name, ok := names[code]; ok {
		return name
	}
	return names[DefaultCode]
}

// Known reports whether code is a supported language code
func Known(code string) bool {
	_, ok := names[code]
	return ok
}

// Code normalizes a language name or code to a code. Unknown values
// pass through lowercased so callers can still compare them.
func Code(nameOrCode string) string {
	if nameOrCode == "" {
		return DefaultCode
	}
	normalized := strings.ToLower(strings.TrimSpace(nameOrCode))
	if code, ok := codes[normalized]; ok {
		return code
	}
	return normalized
}

// NeedsTranslation reports whether source and target resolve to
// different languages
func NeedsTranslation(source, target string) bool {
	return Code(source) != Code(target)
}

// MentionedIn reports whether text mentions the given language under
// any known alias. Used to decide whether language-proficiency entries
// should be retranslated during recomposition.
func MentionedIn(text, nameOrCode string) bool {
	code := Code(nameOrCode)
	lower := strings.ToLower(text)
	for _, alias := range aliases[code] {
		if strings.Contains(lower, alias) {
			return true
		}
	}
	return false
}

// Instruction returns the prompt instruction forcing output into the
// target language
func Instruction(languageName string) string {
	instructions := map[string]string{
		"francais":  "Redige TOUT le contenu en FRANCAIS. Utilise un style professionnel et naturel.",
		"anglais":   "Write ALL content in ENGLISH. Use a professional and natural style.",
		"allemand":  "Verfasse ALLE Inhalte auf DEUTSCH. Verwende einen professionellen und natürlichen Stil.",
		"espagnol":  "Escribe TODO el contenido en ESPAÑOL. Usa un estilo profesional y natural.",
		"italien":   "Scrivi TUTTO il contenuto in ITALIANO. Usa uno stile professionale e naturale.",
		"portugais": "Escreva TODO o conteúdo em PORTUGUÊS. Use um estilo profissional e natural.",
	}
	if instr, ok := instructions[languageName]; ok {
		return instr
	}
	return instructions["francais"]
}

// NoMatchReason returns the localized reason recorded for a skill with
// no match in the target posting
func NoMatchReason(code string) string {
	reasons := map[string]string{
		"fr": "Aucune correspondance dans l'offre",
		"en": "No match in the job offer",
		"de": "Keine Übereinstimmung im Stellenangebot",
		"es": "Sin coincidencia en la oferta",
	}
	if reason, ok := reasons[code]; ok {
		return reason
	}
	return reasons[DefaultCode]
}

// Detector detects the language of a free-text snippet, returning a
// language code. Implemented with an inference call at wiring time.
type Detector interface {
	DetectFromText(ctx context.Context, text string) (string, error)
}

// Detection is the outcome of offer-language resolution
type Detection struct {
	Code   string
	Name   string
	Source string
}

// Detection sources
const (
	SourceExplicit = "offer_explicit"
	SourceDetected = "auto_detected"
	SourceFallback = "fallback"
)

// DetectOfferLanguage resolves the language of a job posting.
// Priority: the posting's explicit language field, then automatic
// detection from title/responsibilities text, then the fallback code
// (typically the source document's language).
func DetectOfferLanguage(ctx context.Context, explicit, title string, responsibilities []string, fallback string, detector Detector) Detection {
	if explicit != "" && Known(explicit) {
		return Detection{Code: explicit, Name: Name(explicit), Source: SourceExplicit}
	}

	parts := []string{title}
	if len(responsibilities) > 3 {
		responsibilities = responsibilities[:3]
	}
	parts = append(parts, responsibilities...)
	text := strings.TrimSpace(strings.Join(parts, " "))

	if len(text) > 50 && detector != nil {
		sample := text
		if len(sample) > 500 {
			sample = sample[:500]
		}
		if code, err := detector.DetectFromText(ctx, sample); err == nil && Known(code) {
			return Detection{Code: code, Name: Name(code), Source: SourceDetected}
		}
	}

	code := fallback
	if !Known(code) {
		code = DefaultCode
	}
	return Detection{Code: code, Name: Name(code), Source: SourceFallback}
}
