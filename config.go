package termwise

import (
	"fmt"
	"time"

	"github.com/termwise/termwise/internal/cache"
	"github.com/termwise/termwise/internal/circuitbreaker"
)

// Config holds the configuration for an Assistant.
type Config struct {
	// Language is the default reply language tag (e.g. "en", "zh").
	Language string `json:"language,omitempty" yaml:"language,omitempty"`
	// Backend selects the language-model endpoint.
	Backend BackendConfig `json:"backend" yaml:"backend"`
	// Cache bounds the response caches.
	Cache CacheConfig `json:"cache" yaml:"cache"`
	// CircuitBreaker guards the backend (optional).
	CircuitBreaker *CircuitBreakerConfig `json:"circuit_breaker,omitempty" yaml:"circuit_breaker,omitempty"`
	// RequestLog persists a record of every request (optional).
	RequestLog *RequestLogConfig `json:"request_log,omitempty" yaml:"request_log,omitempty"`
	// RateLimit caps backend calls made on cache misses (optional).
	RateLimit *RateLimitConfig `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	// MaxOutputBytes caps how much command output is sent for interpretation.
	MaxOutputBytes int `json:"max_output_bytes,omitempty" yaml:"max_output_bytes,omitempty"`
}

// ProviderKind names a supported backend type.
type ProviderKind string

// ProviderKind constants.
const (
	ProviderOllama  ProviderKind = "ollama"
	ProviderOpenAI  ProviderKind = "openai"
	ProviderBedrock ProviderKind = "bedrock"
)

// BackendConfig selects and configures the language-model backend.
type BackendConfig struct {
	Provider ProviderKind `json:"provider" yaml:"provider"`
	Model    string       `json:"model" yaml:"model"`
	// BaseURL overrides the provider endpoint (Ollama host, OpenAI-compatible URL).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	// Region is the AWS region for Bedrock.
	Region      string   `json:"region,omitempty" yaml:"region,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// CacheConfig bounds the response caches. Omitted fields take the defaults
// (5m, 100); explicit invalid values are rejected.
type CacheConfig struct {
	// TTL is a Go duration string such as "5m" or "90s".
	TTL     string `json:"ttl,omitempty" yaml:"ttl,omitempty"`
	MaxSize *int   `json:"max_size,omitempty" yaml:"max_size,omitempty"`
	// Coalesce shares one backend call among concurrent identical misses.
	Coalesce bool `json:"coalesce,omitempty" yaml:"coalesce,omitempty"`
}

// Resolve converts c into cache bounds, applying defaults for omitted fields.
func (c CacheConfig) Resolve() (cache.Config, error) {
	out := cache.DefaultConfig()
	if c.TTL != "" {
		ttl, err := time.ParseDuration(c.TTL)
		if err != nil {
			return cache.Config{}, fmt.Errorf("cache ttl %q: %w", c.TTL, err)
		}
		out.TTL = ttl
	}
	if c.MaxSize != nil {
		out.MaxSize = *c.MaxSize
	}
	if err := out.Validate(); err != nil {
		return cache.Config{}, err
	}
	return out, nil
}

// CircuitBreakerConfig configures the backend circuit breaker.
type CircuitBreakerConfig struct {
	FailureThreshold int `json:"failure_threshold,omitempty" yaml:"failure_threshold,omitempty"`
	SuccessThreshold int `json:"success_threshold,omitempty" yaml:"success_threshold,omitempty"`
	// Timeout is how long the breaker stays open, as a duration string.
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Settings converts c into breaker settings.
func (c CircuitBreakerConfig) Settings() (circuitbreaker.Settings, error) {
	s := circuitbreaker.Settings{
		FailureThreshold: c.FailureThreshold,
		SuccessThreshold: c.SuccessThreshold,
	}
	if c.Timeout != "" {
		d, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return s, fmt.Errorf("circuit breaker timeout %q: %w", c.Timeout, err)
		}
		s.Timeout = d
	}
	return s, nil
}

// RateLimitConfig is a token bucket over backend calls. Cache hits are
// never limited.
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	Burst             float64 `json:"burst,omitempty" yaml:"burst,omitempty"`
}

// RequestLogConfig selects where request records are written.
type RequestLogConfig struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// Defaults used by DefaultConfig and when fields are omitted.
const (
	DefaultLanguage       = "en"
	DefaultModel          = "llama3.2"
	DefaultMaxOutputBytes = 8000
)

// DefaultConfig returns a configuration for a local Ollama backend with the
// default cache bounds.
func DefaultConfig() Config {
	return Config{
		Language: DefaultLanguage,
		Backend: BackendConfig{
			Provider: ProviderOllama,
			Model:    DefaultModel,
		},
	}
}
