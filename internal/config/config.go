// Package config provides configuration loading and validation for the service.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// Config holds all runtime configuration, loaded from the environment.
// godotenv is loaded by the CLI before Load runs.
type Config struct {
	DatabaseURL string `validate:"required"`
	RedisURL    string

	Provider     string `validate:"oneof=openai gemini"`
	OpenAIAPIKey string
	GeminiAPIKey string

	// Per-phase model overrides; empty values fall back to tier defaults
	ModelExtract        string
	ModelClassify       string
	ModelBatch          string
	ModelSkills         string
	ModelRecompose      string
	ModelDetectLanguage string

	// Credits charged (and refunded on failure) per adaptation
	CreditCostAdaptation int `validate:"gte=0"`

	// Per-user concurrency slots per task type
	MaxConcurrentTasks int `validate:"gte=1"`

	Port       int `validate:"gte=1,lte=65535"`
	UseBrowser bool
	LogJSON    bool
	LogLevel   string
}

// Load reads configuration from the environment and validates it
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisURL:             os.Getenv("REDIS_URL"),
		Provider:             envOr("LLM_PROVIDER", "openai"),
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		ModelExtract:         os.Getenv("MODEL_EXTRACT"),
		ModelClassify:        os.Getenv("MODEL_CLASSIFY"),
		ModelBatch:           os.Getenv("MODEL_BATCH"),
		ModelSkills:          os.Getenv("MODEL_SKILLS"),
		ModelRecompose:       os.Getenv("MODEL_RECOMPOSE"),
		ModelDetectLanguage:  os.Getenv("MODEL_DETECT_LANGUAGE"),
		CreditCostAdaptation: envInt("CREDIT_COST_ADAPTATION", 1),
		MaxConcurrentTasks:   envInt("MAX_CONCURRENT_TASKS", 3),
		Port:                 envInt("PORT", 8080),
		UseBrowser:           envBool("FETCH_USE_BROWSER"),
		LogJSON:              envBool("LOG_JSON"),
		LogLevel:             envOr("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid or missing values
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			return fmt.Errorf("config error: field %s failed %s validation", errs[0].Field(), errs[0].Tag())
		}
		return fmt.Errorf("config error: %w", err)
	}

	switch c.Provider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("config error: OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("config error: GEMINI_API_KEY is required when LLM_PROVIDER=gemini")
		}
	}
	return nil
}

// APIKey returns the key for the configured provider
func (c *Config) APIKey() string {
	if c.Provider == "gemini" {
		return c.GeminiAPIKey
	}
	return c.OpenAIAPIKey
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string) bool {
	v, _ := strconv.ParseBool(os.Getenv(key))
	return v
}
