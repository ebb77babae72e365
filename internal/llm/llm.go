// Package llm provides text-completion clients for the answer selection and
// reranking paths. Anthropic and OpenAI backends are supported behind one
// interface; both handle rate limiting and bounded retries for transient
// failures.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider constants accepted by New.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Defaults shared by both backends.
const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-sonnet-4-20250514"
	defaultOpenAIBaseURL    = "https://api.openai.com"
	defaultOpenAIModel      = "gpt-4o-mini"

	defaultMaxTokens   = 2500
	defaultTimeout     = 60 * time.Second
	defaultMaxRetries  = 3
	defaultBaseBackoff = 1 * time.Second

	// Rate limiting: stay under typical API tier limits.
	defaultRateLimit = 50.0 / 60.0 // ~0.83 requests per second
	defaultBurst     = 5
)

// Sentinel errors.
var (
	// ErrInvalidConfig indicates invalid client configuration.
	ErrInvalidConfig = errors.New("invalid llm configuration")

	// ErrEmptyResponse is returned when the API produced no completion text.
	ErrEmptyResponse = errors.New("empty response from API")
)

// Client generates text completions.
type Client interface {
	// Complete generates a completion for the prompt. Implementations retry
	// transient failures with exponential backoff and honor ctx cancellation.
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config holds provider configuration.
type Config struct {
	// Provider selects the backend: "anthropic" or "openai".
	Provider string `koanf:"provider"`

	// Model is the model identifier; provider-specific default when empty.
	Model string `koanf:"model"`

	// APIKey authenticates against the provider. Required.
	APIKey string `koanf:"api_key"`

	// BaseURL overrides the provider endpoint, e.g. for proxies.
	BaseURL string `koanf:"base_url"`

	// MaxTokens bounds the completion length. Default: 2500
	MaxTokens int `koanf:"max_tokens"`

	// Temperature is the sampling temperature. Answer selection wants
	// deterministic output, so the default is 0.
	Temperature float64 `koanf:"temperature"`

	// Timeout bounds each HTTP request. Default: 60s
	Timeout time.Duration `koanf:"timeout"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderAnthropic
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, c.Provider)
	}
	if c.APIKey == "" {
		return fmt.Errorf("%w: API key required", ErrInvalidConfig)
	}
	return nil
}

// New creates a Client for the configured provider.
func New(cfg Config) (Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case ProviderAnthropic:
		return newAnthropicClient(cfg), nil
	case ProviderOpenAI:
		return newOpenAIClient(cfg), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// retryableError wraps an error to indicate it can be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryableError checks if an error should be retried.
func isRetryableError(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// backoffFor returns the exponential backoff for a retry attempt (1-based).
func backoffFor(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<(attempt-1))
}
