package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a termwise configuration file (JSON/YAML)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args[0])
			if err != nil {
				return err
			}
			cc, err := cfg.Cache.Resolve()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Config is valid\n")
			fmt.Fprintf(out, "  Backend:  %s (%s)\n", cfg.Backend.Provider, cfg.Backend.Model)
			fmt.Fprintf(out, "  Cache:    ttl=%s max_size=%d coalesce=%t\n", cc.TTL, cc.MaxSize, cfg.Cache.Coalesce)
			if cfg.CircuitBreaker != nil {
				fmt.Fprintf(out, "  Breaker:  failure_threshold=%d timeout=%s\n",
					cfg.CircuitBreaker.FailureThreshold, cfg.CircuitBreaker.Timeout)
			}
			if cfg.RequestLog != nil {
				driver := cfg.RequestLog.Driver
				if driver == "" {
					driver = "sqlite"
				}
				fmt.Fprintf(out, "  Log:      %s\n", driver)
			}
			return nil
		},
	}
}
