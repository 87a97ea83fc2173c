// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm wraps the hosted model APIs behind one text-in, text-out
// interface shared by every agent.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// ErrorPrefix starts the text Call returns in place of a model response
// when the request fails.
const ErrorPrefix = "[LLM Error]: "

// DefaultTemperature is the sampling temperature used when none is configured.
const DefaultTemperature = 0.4

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

// ErrNoAPIKey is returned by New when the configuration carries no key.
var ErrNoAPIKey = errors.New("llm: API key is not configured")

// ErrEmptyResponse is returned by a Client when the model produced no text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Client sends one prompt to a model and returns its text. Implementations
// make exactly one outbound request per call and do not retry.
type Client interface {
	// Generate sends prompt with an optional system instruction.
	Generate(ctx context.Context, prompt, systemInstruction string) (string, error)

	// Name identifies the provider and model (e.g. "gemini:gemini-2.0-flash").
	Name() string
}

// Call invokes c and never fails: a transport or API error is returned as
// ErrorPrefix followed by the error message. The response is trimmed.
func Call(ctx context.Context, c Client, prompt, systemInstruction string) string {
	text, err := c.Generate(ctx, prompt, systemInstruction)
	if err != nil {
		return ErrorPrefix + err.Error()
	}
	return strings.TrimSpace(text)
}

// IsError reports whether text is a Call failure.
func IsError(text string) bool {
	return strings.HasPrefix(text, ErrorPrefix)
}

// New builds the client for cfg.Provider. An empty provider selects Gemini.
func New(ctx context.Context, cfg types.LLMConfig) (Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}

	switch cfg.Provider {
	case types.ProviderGemini, "":
		if cfg.Model == "" {
			cfg.Model = DefaultModel
		}
		return NewGemini(ctx, cfg)
	case types.ProviderOpenAI:
		return NewOpenAI(cfg)
	case types.ProviderAnthropic:
		return NewAnthropic(cfg)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
