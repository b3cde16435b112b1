package cli

import (
	"time"

	"github.com/spf13/cobra"
)

// registerFilterFlags adds the event filtering flags to a cobra command.
// Values are read back through config.Load, so only defaults are set here.
func registerFilterFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSlice("suffixes", []string{".cpp", ".h"}, `file suffixes that trigger a run ("*" matches all files)`)
	f.StringSlice("events", []string{"modified"}, "event kinds that trigger a run: created, modified, deleted, other")
	f.StringSlice("exclude-dirs", []string{".git"}, "directory names that are not watched")

	completeValues(cmd, "events", "created", "modified", "deleted", "other")
}

// registerLoopFlags adds the watch loop timing flags to a cobra command.
func registerLoopFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Duration("debounce", 100*time.Millisecond, "quiet period before a change triggers a run (0 disables)")
	f.Duration("arm-window", time.Second, "window in which a second Ctrl+C stops the watcher")
	f.Bool("run-on-start", false, "run build and test once before waiting for changes")
	f.Duration("timeout", 0, "limit for each build and test command (0 means no limit)")
}

// registerDiffFlags adds the output diff flags to a cobra command.
func registerDiffFlags(cmd *cobra.Command) {
	cmd.Flags().String("granularity", "char", "diff granularity for test output: char, line")

	completeValues(cmd, "granularity", "char", "line")
}

// completeValues offers a fixed set of values for flag in shell completion.
func completeValues(cmd *cobra.Command, flag string, values ...string) {
	_ = cmd.RegisterFlagCompletionFunc(flag, cobra.FixedCompletions(values, cobra.ShellCompDirectiveNoFileComp))
}
