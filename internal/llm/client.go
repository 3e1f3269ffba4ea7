package llm

import (
	"context"
	"fmt"
)

// Usage reports token consumption for one call
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	CachedTokens     int `json:"cached_tokens"`
}

// Request is one chat-style inference call
type Request struct {
	Feature     Feature
	System      string
	User        string
	Schema      *Schema
	Temperature float32
	MaxTokens   int
}

// Response is the inference result with its telemetry
type Response struct {
	Content string
	Model   string
	Usage   Usage
}

// Client is an abstraction over inference providers
type Client interface {
	// Complete runs one chat completion. When req.Schema is set the
	// provider is asked for structured output and the raw content is
	// validated against the schema before being returned.
	Complete(ctx context.Context, req Request) (*Response, error)
	// Model returns the model name that would serve a feature
	Model(feature Feature) string
	// Close releases any resources held by the client
	Close() error
}

// NewClient creates a client for the configured provider
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, config, apiKey)
	case ProviderOpenAI:
		return NewOpenAIClient(config, apiKey)
	default:
		return nil, fmt.Errorf("unknown provider %q", config.Provider)
	}
}
