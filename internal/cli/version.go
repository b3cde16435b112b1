package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/retest/internal/version"
)

func newVersionCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Display the version, git commit, build date, Go version, and platform.",
		Args:  cobra.NoArgs,
		// Override parent PersistentPreRunE: version needs no config.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.GetInfo()

			var (
				text string
				err  error
			)

			switch output {
			case "text":
				text = info.String()
			case "json":
				text, err = info.JSON()
			case "yaml":
				text, err = info.YAML()
			default:
				return &ExitError{Code: 2, Err: fmt.Errorf("invalid output %q: must be one of text, json, yaml", output)}
			}

			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)

			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json, yaml")

	return cmd
}
