package main

import (
	"context"
	"fmt"

	"github.com/termwise/termwise"
)

// loadConfig reads path, or returns the default config when path is empty.
func loadConfig(path string) (termwise.Config, error) {
	if path == "" {
		return termwise.DefaultConfig(), nil
	}
	cfg, err := termwise.LoadConfig(path)
	if err != nil {
		return termwise.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := termwise.ValidateConfig(*cfg); err != nil {
		return termwise.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return *cfg, nil
}

// app is a wired Assistant plus the resources it owns.
type app struct {
	cfg       termwise.Config
	assistant *termwise.Assistant
	closers   []func() error
}

// newApp builds the backend, the Assistant and the optional request log
// from the config at flags.configPath.
func newApp(ctx context.Context, flags *globalFlags) (*app, error) {
	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}
	backend, err := termwise.NewBackend(ctx, cfg.Backend)
	if err != nil {
		return nil, fmt.Errorf("init backend: %w", err)
	}
	a, err := termwise.New(cfg, backend)
	if err != nil {
		return nil, err
	}

	out := &app{cfg: cfg, assistant: a}
	if cfg.RequestLog != nil {
		w, closer, err := termwise.OpenRequestLog(cfg.RequestLog)
		if err != nil {
			return nil, fmt.Errorf("init request log: %w", err)
		}
		a.AddHook(termwise.RequestLogHook(w))
		out.closers = append(out.closers, closer)
	}
	return out, nil
}

func (a *app) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
