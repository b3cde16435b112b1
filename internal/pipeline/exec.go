package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// CommandRunner runs an external command with no arguments and returns its
// combined stdout and stderr together with the exit status. A non-nil error
// means the command could not be run to completion (not found, not
// executable, timed out); the exit status is then -1.
type CommandRunner interface {
	Run(ctx context.Context, command string) (output string, exitStatus int, err error)
}

// ExecRunner runs commands as child processes of the current process. The
// child inherits the parent's environment and working directory.
type ExecRunner struct {
	// Timeout limits each command. Zero means no limit, so a hanging child
	// blocks the caller until it exits.
	Timeout time.Duration
}

// Run implements CommandRunner.
func (e ExecRunner) Run(ctx context.Context, command string) (string, int, error) {
	runCtx := ctx

	if e.Timeout > 0 {
		var cancel context.CancelFunc

		runCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, command) //nolint:gosec

	out, err := cmd.CombinedOutput()
	if err == nil {
		return string(out), 0, nil
	}

	if e.Timeout > 0 && ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return string(out), -1, fmt.Errorf("timed out after %s", e.Timeout)
	}

	if ctx.Err() != nil {
		return string(out), -1, fmt.Errorf("interrupted: %w", ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return string(out), exitErr.ExitCode(), nil
	}

	return string(out), -1, fmt.Errorf("running %q: %w", command, err)
}
