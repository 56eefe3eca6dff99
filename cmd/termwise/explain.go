package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/termwise/termwise"
)

func newExplainCmd(flags *globalFlags) *cobra.Command {
	var (
		command string
		file    string
		lang    string
	)

	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Explain command output read from stdin or a file",
		Example: `  make 2>&1 | termwise explain --command make
  termwise explain --file build.log`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var src io.Reader = cmd.InOrStdin()
			if file != "" {
				f, err := os.Open(file) //nolint:gosec
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				src = f
			}
			output, err := io.ReadAll(src)
			if err != nil {
				return fmt.Errorf("read output: %w", err)
			}

			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ans, err := a.assistant.InterpretOutput(cmd.Context(), termwise.Interpretation{
				Command:  command,
				Output:   string(output),
				Language: lang,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ans.Text)
			return nil
		},
	}
	cmd.Flags().StringVar(&command, "command", "", "the command that produced the output")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read output from file instead of stdin")
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "reply language tag")
	return cmd
}
