package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/era/internal/modload"
)

func newParseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse one content file and print the resulting tree",
		Long: `Parse runs the CSV, XML or table parser chosen by the file extension and
prints the result as JSON. Line-level problems are logged as warnings.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := args[0]
			data, err := os.ReadFile(file)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return userError(err)
				}
				return sysError(err)
			}

			n, issues, err := modload.ParseFile(file, string(data), a.arrayTags()...)
			if err != nil {
				return userError(fmt.Errorf("parse: %w", err))
			}
			for _, issue := range issues {
				a.logger.Warn().
					Str("file", file).
					Int("line", issue.Line).
					Str("text", issue.Text).
					Err(issue.Err).
					Msg("skipping malformed line")
			}
			return printNode(cmd.OutOrStdout(), n, true)
		},
	}
}
