package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/termwise/termwise"
	"github.com/termwise/termwise/providers"
)

const replHelp = `Type a request to get a shell command.
  :history   show the conversation so far
  :stats     show response cache usage
  :clear     empty the response caches and forget the conversation
  :quit      exit
`

func newREPLCmd(flags *globalFlags) *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive session that keeps conversation history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			fmt.Fprint(cmd.OutOrStdout(), replHelp)
			return runREPL(cmd.Context(), a.assistant, cmd.InOrStdin(), cmd.OutOrStdout(), lang)
		},
	}
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "reply language tag")
	return cmd
}

// runREPL reads requests line by line from in until EOF or :quit.
func runREPL(ctx context.Context, a *termwise.Assistant, in io.Reader, out io.Writer, lang string) error {
	var history []termwise.Turn
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case ":quit", ":q", ":exit":
			return nil
		case ":help":
			fmt.Fprint(out, replHelp)
			continue
		case ":clear":
			a.ClearCache()
			history = nil
			fmt.Fprintln(out, "cache and history cleared")
			continue
		case ":stats":
			for _, s := range a.CacheStats() {
				fmt.Fprintf(out, "%-24s %d/%d entries, ttl %s\n", s.Name, s.Size, s.MaxSize, s.TTL)
			}
			continue
		case ":history":
			if len(history) == 0 {
				fmt.Fprintln(out, "(empty)")
			}
			for _, t := range history {
				fmt.Fprintf(out, "%-9s %s\n", t.Role+":", t.Content)
			}
			continue
		}

		ans, err := a.GenerateCommand(ctx, termwise.Query{Prompt: line, History: history, Language: lang})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		suffix := ""
		if ans.Cached {
			suffix = "  (cached)"
		}
		fmt.Fprintf(out, "%s%s\n", ans.Text, suffix)
		history = append(history,
			termwise.Turn{Role: providers.RoleUser, Content: line},
			termwise.Turn{Role: providers.RoleAssistant, Content: ans.Text},
		)
	}
}
