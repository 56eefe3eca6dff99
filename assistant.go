// Package termwise turns natural-language requests into shell commands and
// explains command output by calling a language-model backend.
//
// The Assistant type is the main entry point: create one per backend with
// New, then call GenerateCommand or InterpretOutput. Every backend call goes
// through a bounded, TTL-limited response cache so repeated questions are
// answered without another round-trip.
//
// Configuration is loaded from a YAML or JSON file with [LoadConfig].
package termwise

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/termwise/termwise/internal/cache"
	"github.com/termwise/termwise/internal/circuitbreaker"
	"github.com/termwise/termwise/internal/logging"
	"github.com/termwise/termwise/internal/metrics"
	"github.com/termwise/termwise/internal/ratelimit"
	"github.com/termwise/termwise/providers"
)

// EventHookFunc is called asynchronously after an assistant request
// completes or fails.
type EventHookFunc func(ctx context.Context, subject string, data map[string]interface{})

// Event subject constants used when invoking assistant hooks.
const (
	SubjectRequestCompleted = "assistant.request.completed"
	SubjectRequestFailed    = "assistant.request.failed"
)

// Operation names used in metrics, hooks and cache names.
const (
	OperationCommand   = "command"
	OperationInterpret = "interpret"
)

var (
	// ErrEmptyPrompt is returned by GenerateCommand for a blank prompt.
	ErrEmptyPrompt = errors.New("prompt is empty")
	// ErrEmptyOutput is returned by InterpretOutput for blank output.
	ErrEmptyOutput = errors.New("command output is empty")
	// ErrEmptyResponse is returned when the backend answers with no usable text.
	ErrEmptyResponse = errors.New("backend returned an empty response")
	// ErrRateLimited is returned when a cache miss exceeds the backend rate limit.
	ErrRateLimited = errors.New("backend rate limit exceeded")
)

// Turn is one prior exchange in a conversation.
type Turn = cache.Turn

// Query asks for a shell command.
type Query struct {
	Prompt  string `json:"prompt"`
	History []Turn `json:"history,omitempty"`
	// Language is the reply language tag. Empty means the configured default.
	Language string `json:"language,omitempty"`
}

// Interpretation asks for an explanation of a command's output.
type Interpretation struct {
	Command  string `json:"command,omitempty"`
	Output   string `json:"output"`
	History  []Turn `json:"history,omitempty"`
	Language string `json:"language,omitempty"`
}

// Answer is the assistant's reply.
type Answer struct {
	Text string `json:"text"`
	// Cached is true when the reply was served from the response cache.
	Cached bool `json:"cached"`
	// Shared is true when the reply came from a concurrent identical request.
	Shared bool `json:"shared,omitempty"`
	// Latency is reported over HTTP as latency_ms.
	Latency time.Duration `json:"-"`
}

// CacheStat describes one response cache.
type CacheStat struct {
	Name    string        `json:"name"`
	Size    int           `json:"size"`
	MaxSize int           `json:"max_size"`
	TTL     time.Duration `json:"ttl"`
}

// Assistant answers terminal questions through a cached backend.
type Assistant struct {
	cfg             Config
	backend         providers.Provider
	commands        *cache.ResponseCache[string]
	interpretations *cache.ResponseCache[string]
	breaker         *circuitbreaker.Breaker
	limiter         *ratelimit.Limiter

	mu    sync.RWMutex // guards hooks
	hooks []EventHookFunc
}

// New creates an Assistant for backend. The config is validated first and
// an invalid cache bound is a construction error. opts are passed to both
// response caches.
func New(cfg Config, backend providers.Provider, opts ...cache.Option) (*Assistant, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.MaxOutputBytes == 0 {
		cfg.MaxOutputBytes = DefaultMaxOutputBytes
	}

	cacheCfg, err := cfg.Cache.Resolve()
	if err != nil {
		return nil, err
	}
	if cfg.Cache.Coalesce {
		opts = append(opts, cache.WithCoalescing())
	}

	a := &Assistant{cfg: cfg, backend: backend}
	a.commands, err = cache.NewResponseCache[string](backend.Name()+"/"+OperationCommand, cacheCfg, opts...)
	if err != nil {
		return nil, err
	}
	a.interpretations, err = cache.NewResponseCache[string](backend.Name()+"/"+OperationInterpret, cacheCfg, opts...)
	if err != nil {
		return nil, err
	}

	if cfg.CircuitBreaker != nil {
		settings, err := cfg.CircuitBreaker.Settings()
		if err != nil {
			return nil, err
		}
		name := backend.Name()
		settings.OnStateChange = func(s circuitbreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(s))
			logging.Logger.Warn("circuit breaker state changed", "backend", name, "state", s.String())
		}
		a.breaker = circuitbreaker.New(settings)
		metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(circuitbreaker.StateClosed))
	}
	if rl := cfg.RateLimit; rl != nil {
		a.limiter = ratelimit.New(rl.RequestsPerSecond, rl.Burst)
	}
	return a, nil
}

// Config returns the effective configuration.
func (a *Assistant) Config() Config { return a.cfg }

// Backend returns the provider the assistant calls.
func (a *Assistant) Backend() providers.Provider { return a.backend }

// AddHook registers an EventHookFunc that is called asynchronously on each
// completed or failed request.
func (a *Assistant) AddHook(fn EventHookFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = append(a.hooks, fn)
}

// GenerateCommand turns q.Prompt into a shell command.
func (a *Assistant) GenerateCommand(ctx context.Context, q Query) (Answer, error) {
	if strings.TrimSpace(q.Prompt) == "" {
		return Answer{}, ErrEmptyPrompt
	}
	in := cache.Inputs{
		Prompt:   q.Prompt,
		History:  q.History,
		Language: a.language(q.Language),
	}
	return a.run(ctx, OperationCommand, a.commands, in, a.complete(commandSystemPrompt, cleanCommand))
}

// InterpretOutput explains the output of a command. Output longer than
// MaxOutputBytes is cut from the front.
func (a *Assistant) InterpretOutput(ctx context.Context, req Interpretation) (Answer, error) {
	if strings.TrimSpace(req.Output) == "" {
		return Answer{}, ErrEmptyOutput
	}
	in := cache.Inputs{
		Prompt:   interpretPrompt(req.Command, truncateOutput(req.Output, a.cfg.MaxOutputBytes)),
		History:  req.History,
		Language: a.language(req.Language),
	}
	return a.run(ctx, OperationInterpret, a.interpretations, in, a.complete(interpretSystemPrompt, strings.TrimSpace))
}

// ClearCache empties both response caches.
func (a *Assistant) ClearCache() {
	a.commands.Clear()
	a.interpretations.Clear()
}

// CacheStats reports the size and bounds of each response cache.
func (a *Assistant) CacheStats() []CacheStat {
	out := make([]CacheStat, 0, 2)
	for _, c := range []*cache.ResponseCache[string]{a.commands, a.interpretations} {
		cfg := c.Config()
		out = append(out, CacheStat{
			Name:    c.Name(),
			Size:    c.Size(),
			MaxSize: cfg.MaxSize,
			TTL:     cfg.TTL,
		})
	}
	return out
}

// BreakerState returns the circuit breaker state, or StateClosed when no
// breaker is configured.
func (a *Assistant) BreakerState() circuitbreaker.State {
	if a.breaker == nil {
		return circuitbreaker.StateClosed
	}
	return a.breaker.State()
}

func (a *Assistant) language(tag string) string {
	if tag = strings.TrimSpace(tag); tag != "" {
		return tag
	}
	return a.cfg.Language
}

func (a *Assistant) run(ctx context.Context, op string, c *cache.ResponseCache[string], in cache.Inputs, call cache.Func[string]) (Answer, error) {
	start := time.Now()
	log := logging.FromContext(ctx)
	backend := a.backend.Name()
	model := a.cfg.Backend.Model

	res, err := c.Fetch(ctx, in, call)
	latency := time.Since(start)
	metrics.RequestDuration.WithLabelValues(op, backend).Observe(latency.Seconds())

	if err != nil {
		log.Error("request failed",
			"operation", op,
			"backend", backend,
			"model", model,
			"latency_ms", latency.Milliseconds(),
			"error", err.Error(),
		)
		a.publishEvent(ctx, SubjectRequestFailed, map[string]interface{}{
			"trace_id":   logging.TraceIDFromContext(ctx),
			"operation":  op,
			"backend":    backend,
			"model":      model,
			"cache_hit":  false,
			"error":      err.Error(),
			"latency_ms": latency.Milliseconds(),
			"timestamp":  time.Now(),
		})
		return Answer{Latency: latency}, err
	}

	log.Info("request completed",
		"operation", op,
		"backend", backend,
		"model", model,
		"cache_hit", res.Hit,
		"shared", res.Shared,
		"latency_ms", latency.Milliseconds(),
	)
	a.publishEvent(ctx, SubjectRequestCompleted, map[string]interface{}{
		"trace_id":   logging.TraceIDFromContext(ctx),
		"operation":  op,
		"backend":    backend,
		"model":      model,
		"cache_hit":  res.Hit,
		"latency_ms": latency.Milliseconds(),
		"timestamp":  time.Now(),
	})
	return Answer{Text: res.Value, Cached: res.Hit, Shared: res.Shared, Latency: latency}, nil
}

// complete adapts the backend to a cache.Func. system builds the system
// prompt for the request language; clean post-processes the reply before it
// is cached.
func (a *Assistant) complete(system func(lang string) string, clean func(string) string) cache.Func[string] {
	return func(ctx context.Context, in cache.Inputs) (string, error) {
		if a.limiter != nil && !a.limiter.Allow() {
			return "", ErrRateLimited
		}
		req := providers.Request{
			Model:       a.cfg.Backend.Model,
			Messages:    buildMessages(system(in.Language), in),
			Temperature: a.cfg.Backend.Temperature,
			MaxTokens:   a.cfg.Backend.MaxTokens,
		}
		send := func(ctx context.Context) (*providers.Response, error) {
			return a.backend.Complete(ctx, req)
		}

		var (
			resp *providers.Response
			err  error
		)
		if a.breaker != nil {
			resp, err = circuitbreaker.Do(ctx, a.breaker, send)
		} else {
			resp, err = send(ctx)
		}
		if err != nil {
			return "", err
		}
		text := clean(resp.Text())
		if text == "" {
			return "", ErrEmptyResponse
		}
		return text, nil
	}
}

func buildMessages(system string, in cache.Inputs) []providers.Message {
	msgs := make([]providers.Message, 0, len(in.History)+2)
	msgs = append(msgs, providers.Message{Role: providers.RoleSystem, Content: system})
	for _, t := range in.History {
		msgs = append(msgs, providers.Message{Role: t.Role, Content: t.Content})
	}
	return append(msgs, providers.Message{Role: providers.RoleUser, Content: in.Prompt})
}

// publishEvent calls all registered hooks asynchronously.
func (a *Assistant) publishEvent(ctx context.Context, subject string, data map[string]interface{}) {
	a.mu.RLock()
	hooks := make([]EventHookFunc, len(a.hooks))
	copy(hooks, a.hooks)
	a.mu.RUnlock()

	// Hooks outlive the request, so they must not see its cancellation.
	ctx = context.WithoutCancel(ctx)
	for _, h := range hooks {
		fn := h
		go fn(ctx, subject, data)
	}
}
