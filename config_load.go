package termwise

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed config.schema.json
var configSchemaJSON []byte

var (
	configSchemaOnce sync.Once
	configSchema     *jsonschema.Schema
	configSchemaErr  error
)

func compiledConfigSchema() (*jsonschema.Schema, error) {
	configSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("config.schema.json", bytes.NewReader(configSchemaJSON)); err != nil {
			configSchemaErr = fmt.Errorf("loading config schema: %w", err)
			return
		}
		configSchema, configSchemaErr = c.Compile("config.schema.json")
	})
	return configSchema, configSchemaErr
}

// LoadConfig reads, schema-checks and parses a config file.
// Supported formats: JSON (.json), YAML (.yaml, .yml).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ParseConfig(data, filepath.Ext(path))
}

// ParseConfig parses config data in the format named by ext (".json",
// ".yaml" or ".yml") and checks it against the config schema.
func ParseConfig(data []byte, ext string) (*Config, error) {
	var (
		cfg Config
		doc interface{}
	)
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
		// Round-trip through JSON so the schema sees JSON types.
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("converting YAML config: %w", err)
		}
		doc = nil
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("converting YAML config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q: use .json, .yaml, or .yml", ext)
	}

	schema, err := compiledConfigSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("config does not match schema: %w", err)
	}
	return &cfg, nil
}

// ValidateConfig validates a Config for correctness.
func ValidateConfig(cfg Config) error {
	switch cfg.Backend.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderBedrock:
	case "":
		return errors.New("backend provider is required")
	default:
		return fmt.Errorf("unknown backend provider: %q", cfg.Backend.Provider)
	}
	if cfg.Backend.Model == "" {
		return errors.New("backend model is required")
	}
	if t := cfg.Backend.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("backend temperature %v out of range [0, 2]", *t)
	}
	if m := cfg.Backend.MaxTokens; m != nil && *m <= 0 {
		return fmt.Errorf("backend max_tokens must be positive (got %d)", *m)
	}

	if _, err := cfg.Cache.Resolve(); err != nil {
		return fmt.Errorf("invalid cache config: %w", err)
	}

	if cb := cfg.CircuitBreaker; cb != nil {
		if cb.FailureThreshold < 0 || cb.SuccessThreshold < 0 {
			return errors.New("circuit breaker thresholds must not be negative")
		}
		s, err := cb.Settings()
		if err != nil {
			return err
		}
		if s.Timeout < 0 {
			return fmt.Errorf("circuit breaker timeout must not be negative (got %s)", s.Timeout)
		}
	}

	if rl := cfg.RequestLog; rl != nil {
		switch rl.Driver {
		case "", "sqlite":
		case "postgres":
			if strings.TrimSpace(rl.DSN) == "" {
				return errors.New("postgres request log requires a dsn")
			}
		default:
			return fmt.Errorf("unknown request log driver: %q", rl.Driver)
		}
	}

	if rl := cfg.RateLimit; rl != nil {
		if rl.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limit requests_per_second must be positive (got %v)", rl.RequestsPerSecond)
		}
		if rl.Burst < 0 {
			return fmt.Errorf("rate_limit burst must not be negative (got %v)", rl.Burst)
		}
	}

	if cfg.MaxOutputBytes < 0 {
		return fmt.Errorf("max_output_bytes must not be negative (got %d)", cfg.MaxOutputBytes)
	}
	return nil
}
