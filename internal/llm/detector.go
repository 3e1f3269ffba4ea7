package llm

import (
	"context"
	"strings"
)

// LanguageDetector detects the language of a text snippet with a
// minimal inference call
type LanguageDetector struct {
	client Client
}

// NewLanguageDetector creates a detector backed by the given client
func NewLanguageDetector(client Client) *LanguageDetector {
	return &LanguageDetector{client: client}
}

var validLanguageCodes = map[string]bool{"fr": true, "en": true, "de": true, "es": true}

// DetectFromText returns the language code of text, defaulting to
// French when the text is too short or the answer is not a known code
func (d *LanguageDetector) DetectFromText(ctx context.Context, text string) (string, error) {
	if len(text) < 20 {
		return "fr", nil
	}
	if len(text) > 300 {
		text = text[:300]
	}

	resp, err := d.client.Complete(ctx, Request{
		Feature:     FeatureDetectLanguage,
		System:      `You are a language detection assistant. Analyze the text and respond with ONLY the language code: "fr" for French, "en" for English, "de" for German, "es" for Spanish. No other text.`,
		User:        `Detect the language: "` + text + `"`,
		Temperature: 0.1,
		MaxTokens:   5,
	})
	if err != nil {
		return "", err
	}

	code := strings.ToLower(strings.TrimSpace(resp.Content))
	if !validLanguageCodes[code] {
		return "fr", nil
	}
	return code, nil
}
