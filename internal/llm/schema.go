package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a JSON schema constraining structured output. The raw
// document is sent to providers that support schema-guided decoding and
// used locally to validate whatever comes back.
type Schema struct {
	Name string
	Raw  json.RawMessage
}

// NewSchema wraps a raw JSON schema document
func NewSchema(name string, raw []byte) *Schema {
	return &Schema{Name: name, Raw: json.RawMessage(raw)}
}

// MarshalJSON returns the raw schema document
func (s *Schema) MarshalJSON() ([]byte, error) {
	return s.Raw, nil
}

// Validate checks content against the schema. A validation failure is
// returned as an error so callers treat it like any other malformed
// output and retry.
func (s *Schema) Validate(content string) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(s.Raw),
		gojsonschema.NewStringLoader(content),
	)
	if err != nil {
		return fmt.Errorf("schema %s: invalid output JSON: %w", s.Name, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("schema %s: output does not match schema: %s", s.Name, strings.Join(msgs, "; "))
	}
	return nil
}

// cleanJSONBlock removes markdown code block wrappers from JSON
func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
