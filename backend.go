package termwise

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/termwise/termwise/providers"
)

// DefaultOpenAIKeyEnv is read when BackendConfig.APIKeyEnv is empty.
const DefaultOpenAIKeyEnv = "OPENAI_API_KEY"

// NewBackend constructs the provider selected by cfg.
func NewBackend(ctx context.Context, cfg BackendConfig) (providers.Provider, error) {
	switch cfg.Provider {
	case ProviderOllama:
		return providers.NewOllama(cfg.BaseURL, http.DefaultClient), nil
	case ProviderOpenAI:
		env := cfg.APIKeyEnv
		if env == "" {
			env = DefaultOpenAIKeyEnv
		}
		key := os.Getenv(env)
		if key == "" {
			return nil, fmt.Errorf("openai backend: environment variable %s is not set", env)
		}
		return providers.NewOpenAI(key, cfg.BaseURL)
	case ProviderBedrock:
		opts := providers.BedrockOptions{
			Region:          cfg.Region,
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		}
		if cfg.MaxTokens != nil {
			opts.MaxTokens = *cfg.MaxTokens
		}
		return providers.NewBedrock(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown backend provider: %q", cfg.Provider)
	}
}
