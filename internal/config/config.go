// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config maps viper settings onto types.Config.
//
// Settings come from research-assistant.yaml, RESEARCH_ASSISTANT_* environment
// variables (RESEARCH_ASSISTANT_LLM_API_KEY for llm.api_key), and the
// defaults below. The LLM API key additionally falls back to the secrets
// directory and then to the provider's conventional variable, such as
// GEMINI_API_KEY.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/agents"
	"github.com/pdiddy/research-assistant/internal/archive"
	"github.com/pdiddy/research-assistant/internal/arxiv"
	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/internal/logging"
	"github.com/pdiddy/research-assistant/internal/orchestrator"
	"github.com/pdiddy/research-assistant/internal/secrets"
	"github.com/pdiddy/research-assistant/internal/session"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "RESEARCH_ASSISTANT"

// Server defaults.
const (
	DefaultAddr        = ":8080"
	DefaultSessionTTL  = 24 * time.Hour
	DefaultMaxSessions = 256
)

// BindEnv makes every key overridable from the environment, with "." in
// key names read as "_".
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// SetDefaults registers a default for every key Load reads.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", string(types.ProviderGemini))
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", llm.DefaultTemperature)
	v.SetDefault("llm.max_tokens", 0)

	v.SetDefault("arxiv.base_url", arxiv.DefaultBaseURL)
	v.SetDefault("arxiv.max_results", arxiv.DefaultMaxResults)
	v.SetDefault("arxiv.sort_by", "relevance")
	v.SetDefault("arxiv.sort_order", "descending")
	v.SetDefault("arxiv.request_delay", agents.DefaultRequestDelay)
	v.SetDefault("arxiv.timeout", arxiv.DefaultTimeout)
	v.SetDefault("arxiv.max_retries", 3)
	v.SetDefault("arxiv.user_agent", arxiv.DefaultUserAgent)

	v.SetDefault("orchestrator.max_iterations", orchestrator.DefaultMaxIterations)
	v.SetDefault("orchestrator.min_coverage_score", orchestrator.DefaultMinCoverageScore)

	v.SetDefault("server.addr", DefaultAddr)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.heartbeat_interval", session.DefaultHeartbeat)
	v.SetDefault("server.session_ttl", DefaultSessionTTL)
	v.SetDefault("server.max_sessions", DefaultMaxSessions)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.path", archive.DefaultPath)

	v.SetDefault("report.output_dir", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatConsole)
}

// Load reads the configuration from v and resolves the LLM API key. store
// may be nil. The result is validated.
func Load(v *viper.Viper, store secrets.Store) (types.Config, error) {
	cfg := types.Config{
		LLM: types.LLMConfig{
			Provider:    types.LLMProvider(strings.ToLower(strings.TrimSpace(v.GetString("llm.provider")))),
			Model:       v.GetString("llm.model"),
			APIKey:      strings.TrimSpace(v.GetString("llm.api_key")),
			BaseURL:     v.GetString("llm.base_url"),
			Temperature: v.GetFloat64("llm.temperature"),
			MaxTokens:   v.GetInt("llm.max_tokens"),
		},
		Arxiv: types.ArxivConfig{
			BaseURL:      v.GetString("arxiv.base_url"),
			MaxResults:   v.GetInt("arxiv.max_results"),
			SortBy:       v.GetString("arxiv.sort_by"),
			SortOrder:    v.GetString("arxiv.sort_order"),
			RequestDelay: v.GetDuration("arxiv.request_delay"),
			Timeout:      v.GetDuration("arxiv.timeout"),
			MaxRetries:   v.GetInt("arxiv.max_retries"),
			UserAgent:    v.GetString("arxiv.user_agent"),
		},
		Orchestrator: types.OrchestratorConfig{
			MaxIterations:    v.GetInt("orchestrator.max_iterations"),
			MinCoverageScore: v.GetInt("orchestrator.min_coverage_score"),
		},
		Server: types.ServerConfig{
			Addr:              v.GetString("server.addr"),
			AllowedOrigins:    splitList(v.GetStringSlice("server.allowed_origins")),
			HeartbeatInterval: v.GetDuration("server.heartbeat_interval"),
			SessionTTL:        v.GetDuration("server.session_ttl"),
			MaxSessions:       v.GetInt("server.max_sessions"),
		},
		Archive: types.ArchiveConfig{
			Enabled: v.GetBool("archive.enabled"),
			Path:    v.GetString("archive.path"),
		},
		Report: types.ReportConfig{
			OutputDir: v.GetString("report.output_dir"),
		},
		Log: types.LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = types.ProviderGemini
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = ResolveAPIKey(cfg.LLM.Provider, store, os.Getenv)
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ResolveAPIKey looks up the key for provider in store, then in the
// provider's environment variable. It returns "" when neither has one.
func ResolveAPIKey(provider types.LLMProvider, store secrets.Store, getenv func(string) string) string {
	if key, ok := store.APIKey(string(provider)); ok {
		return key
	}
	return strings.TrimSpace(getenv(ProviderEnvVar(provider)))
}

// ProviderEnvVar returns the conventional API key variable for provider.
func ProviderEnvVar(provider types.LLMProvider) string {
	return strings.ToUpper(string(provider)) + "_API_KEY"
}

// Validate reports every invalid setting in cfg. A missing API key is not
// an error here; commands that call the model check for it.
func Validate(cfg types.Config) error {
	var errs []error

	switch cfg.LLM.Provider {
	case types.ProviderGemini, types.ProviderOpenAI, types.ProviderAnthropic:
	default:
		errs = append(errs, fmt.Errorf("llm.provider: unknown provider %q", cfg.LLM.Provider))
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("llm.temperature: %v is outside [0, 2]", cfg.LLM.Temperature))
	}
	if cfg.LLM.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("llm.max_tokens: must not be negative"))
	}

	if cfg.Arxiv.BaseURL == "" {
		errs = append(errs, fmt.Errorf("arxiv.base_url: must be set"))
	}
	if cfg.Arxiv.MaxResults <= 0 {
		errs = append(errs, fmt.Errorf("arxiv.max_results: must be positive, got %d", cfg.Arxiv.MaxResults))
	}
	if cfg.Arxiv.RequestDelay < 0 {
		errs = append(errs, fmt.Errorf("arxiv.request_delay: must not be negative"))
	}
	if cfg.Arxiv.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("arxiv.max_retries: must not be negative"))
	}

	if cfg.Orchestrator.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("orchestrator.max_iterations: must be at least 1, got %d", cfg.Orchestrator.MaxIterations))
	}
	if s := cfg.Orchestrator.MinCoverageScore; s < 1 || s > 10 {
		errs = append(errs, fmt.Errorf("orchestrator.min_coverage_score: %d is outside [1, 10]", s))
	}

	if cfg.Server.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("server.max_sessions: must not be negative"))
	}
	if cfg.Archive.Enabled && cfg.Archive.Path == "" {
		errs = append(errs, fmt.Errorf("archive.path: must be set when the archive is enabled"))
	}

	if _, err := zap.ParseAtomicLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch cfg.Log.Format {
	case logging.FormatJSON, logging.FormatConsole:
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", cfg.Log.Format))
	}

	return errors.Join(errs...)
}

// splitList accepts both YAML lists and comma-separated environment values.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
