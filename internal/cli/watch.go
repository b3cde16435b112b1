package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hupe1980/retest/internal/config"
	"github.com/hupe1980/retest/internal/logging"
	"github.com/hupe1980/retest/internal/pipeline"
	"github.com/hupe1980/retest/internal/watch"
)

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <path> <build-command> <test-command>",
		Short: "Watch a directory and run build and test commands on changes",
		Long: `Watch monitors a directory tree for file changes and runs the build
command followed by the test command whenever a file with a matching
suffix is modified. Both commands are executed without arguments.

A failing build skips the test command. After a successful test run the
output is compared with the previous successful run and the differences
are highlighted.

Press Ctrl+C to rebuild immediately. Press Ctrl+C again within the arm
window (default 1s) to stop watching. Changes made while a build or
test is running are ignored.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd.OutOrStdout(), args[0], args[1], args[2])
		},
	}

	registerFilterFlags(cmd)
	registerLoopFlags(cmd)
	registerDiffFlags(cmd)

	return cmd
}

func runWatch(ctx context.Context, out io.Writer, root, build, test string) error {
	cfg := config.FromContext(ctx)

	pathFilter, err := cfg.PathFilter()
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	differ, err := cfg.Differ()
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	logger := logging.Component(ctx, "pipeline")

	for _, c := range []string{build, test} {
		if _, lookErr := exec.LookPath(c); lookErr != nil {
			logger.Warn("command not found yet; it will be looked up again on each run",
				slog.String("command", c))
		}
	}

	runner, err := pipeline.New(pipeline.Options{
		BuildCommand: build,
		TestCommand:  test,
		Commands:     pipeline.ExecRunner{Timeout: cfg.Timeout},
		Differ:       differ,
		Color:        colorEnabled(cfg),
		Out:          out,
		Logger:       logger,
	})
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	printBanner(out, root, build, test, pathFilter.Suffixes())

	opts := watch.DefaultOptions()
	opts.Root = root
	opts.ExcludeDirs = cfg.ExcludeDirs
	opts.Filter = pathFilter
	opts.Debounce = cfg.Debounce
	opts.ArmWindow = cfg.ArmWindow
	opts.RunOnStart = cfg.RunOnStart
	opts.Logger = logging.Component(ctx, "watch")
	opts.Out = out

	if err := watch.Watch(ctx, opts, runner); err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	return nil
}

func printBanner(out io.Writer, root, build, test string, suffixes []string) {
	fmt.Fprintf(out, "Watching directory: %s\n", root)
	fmt.Fprintf(out, "Build command: %s\n", build)
	fmt.Fprintf(out, "Test command: %s\n", test)

	if len(suffixes) == 0 {
		fmt.Fprintln(out, "Watching all files")
	} else {
		fmt.Fprintf(out, "Watching only suffixes: %s\n", strings.Join(suffixes, ", "))
	}
}

// colorEnabled honours --no-color as well as fatih/color's terminal and
// NO_COLOR detection.
func colorEnabled(cfg *config.Config) bool {
	return !cfg.NoColor && !color.NoColor
}
