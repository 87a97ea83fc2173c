// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// Gemini calls the Gemini API through the genai SDK.
type Gemini struct {
	cli         *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

// NewGemini creates a Gemini client. cfg.BaseURL, when set, replaces the
// API endpoint.
func NewGemini(ctx context.Context, cfg types.LLMConfig) (*Gemini, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	cli, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &Gemini{
		cli:         cli,
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   int32(cfg.MaxTokens),
	}, nil
}

// Name returns "gemini:<model>".
func (g *Gemini) Name() string { return "gemini:" + g.model }

// Generate implements Client.
func (g *Gemini) Generate(ctx context.Context, prompt, systemInstruction string) (string, error) {
	temp := g.temperature
	gc := &genai.GenerateContentConfig{Temperature: &temp}
	if systemInstruction != "" {
		gc.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}}
	}
	if g.maxTokens > 0 {
		gc.MaxOutputTokens = g.maxTokens
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}},
		gc,
	)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}
