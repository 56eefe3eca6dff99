package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/termwise/termwise"
)

func newAskCmd(flags *globalFlags) *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:   "ask <request...>",
		Short: "Translate a natural-language request into a shell command",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ans, err := a.assistant.GenerateCommand(cmd.Context(), termwise.Query{
				Prompt:   strings.Join(args, " "),
				Language: lang,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ans.Text)
			return nil
		},
	}
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "reply language tag (e.g. en, zh, de)")
	return cmd
}
