// Package llm provides centralized inference configuration and client
// abstractions, with per-phase model selection and multi-provider support.
package llm

// Feature identifies the pipeline phase a call belongs to, used for
// model selection and telemetry
type Feature string

// Features with their own model setting
const (
	FeatureExtract        Feature = "extract"
	FeatureClassify       Feature = "classify"
	FeatureBatch          Feature = "batch"
	FeatureSkills         Feature = "skills"
	FeatureRecompose      Feature = "recompose"
	FeatureDetectLanguage Feature = "detect_language"
)

// Provider represents an inference provider
type Provider string

// Supported providers
const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// Config holds the model configuration for the application
type Config struct {
	Provider Provider
	Models   map[Feature]string
	Default  string
}

// DefaultConfig returns the default OpenAI configuration
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderOpenAI,
		Models: map[Feature]string{
			FeatureDetectLanguage: "gpt-4o-mini",
		},
		Default: "gpt-4o",
	}
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[Feature]string{
			FeatureDetectLanguage: "gemini-2.5-flash-lite",
		},
		Default: "gemini-2.5-flash",
	}
}

// Model returns the model name for a feature, falling back to the
// default model when no override is configured
func (c *Config) Model(feature Feature) string {
	if model, ok := c.Models[feature]; ok && model != "" {
		return model
	}
	return c.Default
}

// WithModel returns a new Config with a specific model for a feature
func (c *Config) WithModel(feature Feature, model string) *Config {
	newConfig := &Config{
		Provider: c.Provider,
		Models:   make(map[Feature]string),
		Default:  c.Default,
	}
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	newConfig.Models[feature] = model
	return newConfig
}
