package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Client for the OpenAI chat completions API
type OpenAIClient struct {
	client *openai.Client
	config *Config
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(config *Config, apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		config: config,
	}, nil
}

// Complete runs one chat completion against OpenAI
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	model := c.config.Model(req.Feature)
	if model == "" {
		return nil, fmt.Errorf("no model configured for feature %s", req.Feature)
	}

	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.User,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.Schema != nil {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.Schema.Name,
				Schema: req.Schema,
				Strict: true,
			},
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	content := cleanJSONBlock(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, fmt.Errorf("empty content in response")
	}
	if req.Schema != nil {
		if err := req.Schema.Validate(content); err != nil {
			return nil, err
		}
	}

	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	if resp.Usage.PromptTokensDetails != nil {
		usage.CachedTokens = resp.Usage.PromptTokensDetails.CachedTokens
	}

	return &Response{Content: content, Model: model, Usage: usage}, nil
}

// Model returns the model name for a feature
func (c *OpenAIClient) Model(feature Feature) string {
	return c.config.Model(feature)
}

// Close releases resources held by the client
func (c *OpenAIClient) Close() error {
	return nil
}
