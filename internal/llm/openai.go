// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/pdiddy/research-assistant/pkg/types"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAI calls an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int64
}

// NewOpenAI creates an OpenAI client with SDK retries disabled.
func NewOpenAI(cfg types.LLMConfig) (*OpenAI, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   int64(cfg.MaxTokens),
	}, nil
}

// Name returns "openai:<model>".
func (c *OpenAI) Name() string { return "openai:" + c.model }

// Generate implements Client.
func (c *OpenAI) Generate(ctx context.Context, prompt, systemInstruction string) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if systemInstruction != "" {
		messages = append(messages, openai.SystemMessage(systemInstruction))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    messages,
		Temperature: openai.Float(c.temperature),
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(c.maxTokens)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
