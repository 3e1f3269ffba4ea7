package prompts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetKnownPrompts(t *testing.T) {
	ClearCache()

	keys := []string{
		"extract_system", "extract_user",
		"classify_system", "classify_user",
		"batch_section_system", "batch_section_user",
		"summary_system", "summary_user",
		"skills_category_system", "skills_category_user",
		"languages_retranslate_system", "languages_retranslate_user",
	}
	for _, key := range keys {
		prompt, err := Get("adaptation.json", key)
		require.NoError(t, err, key)
		assert.NotEmpty(t, prompt, key)
	}
}

func TestGetMissing(t *testing.T) {
	_, err := Get("adaptation.json", "nope")
	require.Error(t, err)

	_, err = Get("missing.json", "extract_system")
	require.Error(t, err)
}

func TestFormat(t *testing.T) {
	result := Format("Match {{.SkillCount}} skills in {{.JobLanguage}}", map[string]string{
		"SkillCount":  "12",
		"JobLanguage": "anglais",
	})
	assert.Equal(t, "Match 12 skills in anglais", result)

	// unknown placeholders stay put
	result = Format("keep {{.Unknown}}", map[string]string{"Other": "x"})
	assert.Equal(t, "keep {{.Unknown}}", result)
}

func TestSchemasAreValidJSON(t *testing.T) {
	for _, name := range []string{
		"extraction", "classification", "batch_section",
		"summary", "skills_match", "languages_retranslate",
	} {
		data, err := Schema(name)
		require.NoError(t, err, name)
		var doc map[string]any
		require.NoError(t, json.Unmarshal(data, &doc), name)
		assert.Equal(t, "object", doc["type"], name)
	}

	_, err := Schema("does_not_exist")
	require.Error(t, err)
}
