package types

import "time"

// HTTPConfig holds shared HTTP settings used by backends that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "research-agent/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// ModelProvider identifies the language model API.
type ModelProvider string

const (
	ProviderGemini ModelProvider = "gemini"
	ProviderOpenAI ModelProvider = "openai"
	ProviderClaude ModelProvider = "claude"
)

// AIConfig holds settings for the language model backend.
type AIConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Provider selects the API: gemini, openai, or claude.
	Provider ModelProvider `json:"provider" yaml:"provider" mapstructure:"provider"`

	// APIKey is the authentication key for the provider.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the provider endpoint. For the openai provider this
	// selects any OpenAI-compatible service (e.g. DashScope).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// MaxRetries bounds retries on HTTP 429/503 (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// SearchBackend identifies the grounded search implementation.
type SearchBackend string

const (
	SearchGemini SearchBackend = "gemini"
	SearchTavily SearchBackend = "tavily"
)

// SearchConfig holds settings for grounded web search.
type SearchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Backend selects the search implementation (default gemini).
	Backend SearchBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// APIKey authenticates the search backend. The gemini backend falls
	// back to the model API key.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// RequestsPerSecond caps search calls across all waves. Zero disables the limit.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`

	// Burst is the limiter burst size (default 1).
	Burst int `json:"burst" yaml:"burst" mapstructure:"burst"`

	// MaxResults bounds the snippets used per query by snippet-based backends (default 5).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// ArchiveConfig holds settings for the run archive.
type ArchiveConfig struct {
	// Enabled turns on saving completed runs.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Dir is the directory that holds research.db and exports.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// MaxResults is the default number of runs listed (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// ServerConfig holds settings for the HTTP serving layer.
type ServerConfig struct {
	// Addr is the listen address (default ":8123").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// FrontendDir is the directory of the prebuilt frontend bundle.
	FrontendDir string `json:"frontend_dir" yaml:"frontend_dir" mapstructure:"frontend_dir"`

	// RequestTimeout bounds one research request (0 = no limit).
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout" mapstructure:"request_timeout"`
}
