package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/retest/internal/config"
	"github.com/hupe1980/retest/internal/outdiff"
)

type diffOptions struct {
	// Output format: "text" (default), "unified", "yaml".
	format string

	// Exit with code 1 when the inputs differ.
	exitCode bool
}

func newDiffCommand() *cobra.Command {
	opts := &diffOptions{}

	cmd := &cobra.Command{
		Use:   "diff <previous-file> <current-file>",
		Short: "Highlight the differences between two captured outputs",
		Long: `Diff compares two saved test outputs the same way the watch command
compares consecutive test runs.

With --format unified a classic unified diff is printed; with
--format yaml the raw diff segments are printed instead of the colored
text.

Exit codes:
  0  Success (or no differences with --exit-code)
  1  Differences found (with --exit-code) or error
  2  Invalid arguments`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd.Context(), cmd.OutOrStdout(), args[0], args[1], opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.format, "format", "text", "output format: text, unified, yaml")
	f.BoolVar(&opts.exitCode, "exit-code", false, "exit with code 1 if the inputs differ")

	completeValues(cmd, "format", "text", "unified", "yaml")

	registerDiffFlags(cmd)

	return cmd
}

func runDiff(ctx context.Context, out io.Writer, previousPath, currentPath string, opts *diffOptions) error {
	cfg := config.FromContext(ctx)

	switch opts.format {
	case "text", "unified", "yaml":
	default:
		return &ExitError{Code: 2, Err: fmt.Errorf("invalid format %q: must be one of text, unified, yaml", opts.format)}
	}

	differ, err := cfg.Differ()
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	previous, err := os.ReadFile(previousPath)
	if err != nil {
		return fmt.Errorf("reading previous output: %w", err)
	}

	current, err := os.ReadFile(currentPath)
	if err != nil {
		return fmt.Errorf("reading current output: %w", err)
	}

	segments := differ.Segments(string(previous), string(current))

	switch opts.format {
	case "unified":
		uopts := outdiff.DefaultUnifiedOptions()
		uopts.PreviousLabel = previousPath
		uopts.CurrentLabel = currentPath

		unified, uerr := outdiff.Unified(string(previous), string(current), uopts)
		if uerr != nil {
			return uerr
		}

		outdiff.WriteUnified(out, unified, colorEnabled(cfg))
	case "yaml":
		data, marshalErr := yaml.Marshal(segments)
		if marshalErr != nil {
			return fmt.Errorf("marshaling segments: %w", marshalErr)
		}

		if _, err := out.Write(data); err != nil {
			return err
		}
	default:
		rendered := outdiff.NewRenderer(colorEnabled(cfg)).Render(segments)
		if _, err := io.WriteString(out, rendered); err != nil {
			return err
		}
	}

	if opts.exitCode && outdiff.Changed(segments) {
		return &ExitError{Code: 1}
	}

	return nil
}
