package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		DatabaseURL:          "postgres://localhost/cvtailor",
		Provider:             "openai",
		OpenAIAPIKey:         "sk-test",
		CreditCostAdaptation: 1,
		MaxConcurrentTasks:   3,
		Port:                 8080,
		LogLevel:             "info",
	}
}

func TestValidateOK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateMissingDatabaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DatabaseURL")
}

func TestValidateUnknownProvider(t *testing.T) {
	cfg := validConfig()
	cfg.Provider = "bard"
	require.Error(t, cfg.Validate())
}

func TestValidateMissingProviderKey(t *testing.T) {
	cfg := validConfig()
	cfg.OpenAIAPIKey = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")

	cfg = validConfig()
	cfg.Provider = "gemini"
	cfg.GeminiAPIKey = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestValidatePortRange(t *testing.T) {
	cfg := validConfig()
	cfg.Port = 0
	require.Error(t, cfg.Validate())
	cfg.Port = 70000
	require.Error(t, cfg.Validate())
}

func TestAPIKey(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "sk-test", cfg.APIKey())
	cfg.Provider = "gemini"
	cfg.GeminiAPIKey = "g-test"
	assert.Equal(t, "g-test", cfg.APIKey())
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/cvtailor")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("PORT", "")
	t.Setenv("MAX_CONCURRENT_TASKS", "")
	t.Setenv("CREDIT_COST_ADAPTATION", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 3, cfg.MaxConcurrentTasks)
	assert.Equal(t, 1, cfg.CreditCostAdaptation)
}
