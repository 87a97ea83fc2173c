// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pdiddy/research-assistant/pkg/types"
)

const (
	defaultAnthropicModel     = "claude-sonnet-4-5"
	defaultAnthropicMaxTokens = 8192
)

// Anthropic calls the Claude Messages API.
type Anthropic struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int64
}

// NewAnthropic creates an Anthropic client with SDK retries disabled.
func NewAnthropic(cfg types.LLMConfig) (*Anthropic, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")))
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &Anthropic{
		client:      anthropic.NewClient(opts...),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}, nil
}

// Name returns "anthropic:<model>".
func (c *Anthropic) Name() string { return "anthropic:" + c.model }

// Generate implements Client. Text blocks of the response are concatenated.
func (c *Anthropic) Generate(ctx context.Context, prompt, systemInstruction string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: anthropic.Float(c.temperature),
	}
	if systemInstruction != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemInstruction}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}
