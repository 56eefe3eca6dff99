package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/termwise/termwise/internal/requestlog"
)

func newLogCmd(flags *globalFlags) *cobra.Command {
	var (
		limit     int
		offset    int
		operation string
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recorded requests from the request log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags.configPath)
			if err != nil {
				return err
			}
			if cfg.RequestLog == nil {
				return errors.New("request_log is not configured")
			}
			w, err := requestlog.Open(cfg.RequestLog.Driver, cfg.RequestLog.DSN)
			if err != nil {
				return err
			}
			defer func() { _ = w.Close() }()

			res, err := w.List(cmd.Context(), requestlog.Query{Limit: limit, Offset: offset, Operation: operation})
			if err != nil {
				return err
			}
			return printEntries(cmd, res)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "skip this many of the newest entries")
	cmd.Flags().StringVar(&operation, "operation", "", "filter by operation (command, interpret)")
	return cmd
}

func printEntries(cmd *cobra.Command, res requestlog.ListResult) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tOPERATION\tBACKEND\tMODEL\tCACHE\tLATENCY\tERROR")
	for _, e := range res.Data {
		hit := "miss"
		if e.CacheHit {
			hit = "hit"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%dms\t%s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			e.Operation, e.Backend, e.Model, hit, e.LatencyMS, e.ErrorMessage)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d of %d entries\n", len(res.Data), res.Total)
	return nil
}
