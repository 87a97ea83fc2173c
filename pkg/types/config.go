package types

import "time"

// LLMProvider identifies the hosted model API behind the LLM client.
type LLMProvider string

const (
	ProviderGemini    LLMProvider = "gemini"
	ProviderOpenAI    LLMProvider = "openai"
	ProviderAnthropic LLMProvider = "anthropic"
)

// LLMConfig holds settings for the LLM client shared by every agent.
type LLMConfig struct {
	// Provider selects the API: gemini (default), openai, or anthropic.
	Provider LLMProvider `json:"provider" yaml:"provider"`

	// Model is the model identifier (default "gemini-2.0-flash").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the provider.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the provider endpoint. Empty uses the SDK default.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Temperature is the sampling temperature sent with every request (default 0.4).
	Temperature float64 `json:"temperature" yaml:"temperature"`

	// MaxTokens bounds the response length for providers that require it.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
}

// ArxivConfig holds settings for the arXiv feed client.
type ArxivConfig struct {
	// BaseURL is the Atom query endpoint.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// MaxResults is the number of entries requested per query (default 15).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// SortBy and SortOrder are passed through to the feed (relevance, descending).
	SortBy    string `json:"sort_by" yaml:"sort_by"`
	SortOrder string `json:"sort_order" yaml:"sort_order"`

	// RequestDelay is the pause between consecutive queries (default 3s).
	RequestDelay time.Duration `json:"request_delay" yaml:"request_delay"`

	// Timeout is the HTTP request timeout (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxRetries is the number of retries on HTTP 429 (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// UserAgent is the User-Agent header sent with feed requests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// OrchestratorConfig bounds the refinement loop.
type OrchestratorConfig struct {
	// MaxIterations is the maximum number of retrieve/analyze/critique rounds (default 3).
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`

	// MinCoverageScore stops the loop once the critic's score reaches it (default 7).
	MinCoverageScore int `json:"min_coverage_score" yaml:"min_coverage_score"`
}

// ServerConfig holds settings for the HTTP front end.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr"`

	// AllowedOrigins lists CORS origins. Empty allows all.
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`

	// HeartbeatInterval is the idle time after which a stream emits a heartbeat (default 120s).
	HeartbeatInterval time.Duration `json:"heartbeat_interval" yaml:"heartbeat_interval"`

	// SessionTTL is how long finished sessions stay in memory (default 24h).
	SessionTTL time.Duration `json:"session_ttl" yaml:"session_ttl"`

	// MaxSessions caps the number of sessions held in memory (default 256).
	MaxSessions int `json:"max_sessions" yaml:"max_sessions"`
}

// ArchiveConfig holds settings for the SQLite session archive.
type ArchiveConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// ReportConfig holds settings for on-disk report output.
type ReportConfig struct {
	// OutputDir is the directory that receives one subdirectory per session.
	// Empty disables writing.
	OutputDir string `json:"output_dir" yaml:"output_dir"`
}

// LogConfig selects the logger level and encoding.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Config groups every configuration section.
type Config struct {
	LLM          LLMConfig          `json:"llm" yaml:"llm"`
	Arxiv        ArxivConfig        `json:"arxiv" yaml:"arxiv"`
	Orchestrator OrchestratorConfig `json:"orchestrator" yaml:"orchestrator"`
	Server       ServerConfig       `json:"server" yaml:"server"`
	Archive      ArchiveConfig      `json:"archive" yaml:"archive"`
	Report       ReportConfig       `json:"report" yaml:"report"`
	Log          LogConfig          `json:"log" yaml:"log"`
}
