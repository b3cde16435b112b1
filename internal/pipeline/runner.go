// Package pipeline runs the build command followed by the test command and
// compares the test output against the last known-good run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/retest/internal/outdiff"
)

// Stage identifies which command produced a result.
type Stage int

// Pipeline stages, in execution order.
const (
	StageBuild Stage = iota
	StageTest
)

// String returns "build" or "test".
func (s Stage) String() string {
	switch s {
	case StageBuild:
		return "build"
	case StageTest:
		return "test"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// RunResult is the outcome of one command.
type RunResult struct {
	Stage      Stage
	Succeeded  bool
	Output     string
	ExitStatus int
	Duration   time.Duration
	// Err is set when the command could not be run at all.
	Err error
}

// Report describes one pipeline invocation.
type Report struct {
	// ID uniquely identifies the invocation in logs.
	ID    string
	Build RunResult
	// Test is nil when the build failed.
	Test *RunResult
	// Segments is the diff of the test output against the previous
	// successful run. Empty unless the test succeeded.
	Segments []outdiff.Segment
	// Diff is Segments rendered with ANSI colors.
	Diff string
	// FirstRun is true when no earlier successful output existed.
	FirstRun bool
}

// Succeeded reports whether both build and test passed.
func (r *Report) Succeeded() bool {
	return r.Build.Succeeded && r.Test != nil && r.Test.Succeeded
}

// Failed returns the failing stage result, or nil.
func (r *Report) Failed() *RunResult {
	if !r.Build.Succeeded {
		return &r.Build
	}

	if r.Test != nil && !r.Test.Succeeded {
		return r.Test
	}

	return nil
}

// Changed reports whether the test output differs from the previous
// successful run.
func (r *Report) Changed() bool {
	return !r.FirstRun && outdiff.Changed(r.Segments)
}

// Options configures a Runner.
type Options struct {
	// BuildCommand and TestCommand are executables invoked without arguments.
	BuildCommand string
	TestCommand  string

	// Commands runs the external commands. Defaults to ExecRunner{}.
	Commands CommandRunner

	// Differ computes test output differences. Defaults to character
	// granularity.
	Differ outdiff.Differ

	// Color enables ANSI colors in status lines and diffs.
	Color bool

	// Out receives user-facing status lines.
	Out io.Writer

	// Logger is used for structured logging.
	Logger *slog.Logger

	// Now returns the current time for status line timestamps.
	Now func() time.Time
}

// Runner executes the build and test commands. A Runner is not safe for
// concurrent use; callers serialize invocations.
type Runner struct {
	build    string
	test     string
	commands CommandRunner
	differ   outdiff.Differ
	renderer *outdiff.Renderer
	status   *statusWriter
	logger   *slog.Logger
	now      func() time.Time

	// lastTestOutput is the captured output of the last run in which both
	// build and test succeeded.
	lastTestOutput *string
}

// New validates opts and creates a Runner.
func New(opts Options) (*Runner, error) {
	if opts.BuildCommand == "" {
		return nil, errors.New("build command is required")
	}

	if opts.TestCommand == "" {
		return nil, errors.New("test command is required")
	}

	if opts.Commands == nil {
		opts.Commands = ExecRunner{}
	}

	if opts.Differ == nil {
		opts.Differ = outdiff.NewCharDiffer()
	}

	if opts.Out == nil {
		opts.Out = io.Discard
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Runner{
		build:    opts.BuildCommand,
		test:     opts.TestCommand,
		commands: opts.Commands,
		differ:   opts.Differ,
		renderer: outdiff.NewRenderer(opts.Color),
		status:   newStatusWriter(opts.Out, opts.Color),
		logger:   opts.Logger,
		now:      opts.Now,
	}, nil
}

// LastTestOutput returns the output of the last fully successful run.
func (r *Runner) LastTestOutput() (string, bool) {
	if r.lastTestOutput == nil {
		return "", false
	}

	return *r.lastTestOutput, true
}

// Run executes build then test. The test command is skipped when the build
// fails. The stored test output is replaced only when both succeed.
// Command failures are reported, never returned as errors.
func (r *Runner) Run(ctx context.Context) *Report {
	rep := &Report{ID: uuid.NewString()}
	logger := r.logger.With(slog.String("run", rep.ID))
	started := r.now()

	rep.Build = r.runStage(ctx, logger, StageBuild, r.build, started)
	if !rep.Build.Succeeded {
		r.status.failure(rep.Build)
		return rep
	}

	r.status.buildSucceeded()

	test := r.runStage(ctx, logger, StageTest, r.test, started)
	rep.Test = &test

	if !test.Succeeded {
		r.status.failure(test)
		return rep
	}

	rep.FirstRun = r.lastTestOutput == nil
	rep.Segments = outdiff.Compare(r.lastTestOutput, test.Output, r.differ)
	rep.Diff = r.renderer.Render(rep.Segments)

	r.status.testOutput(rep)

	out := test.Output
	r.lastTestOutput = &out

	logger.Debug("stored test output", slog.Int("bytes", len(out)))

	return rep
}

func (r *Runner) runStage(ctx context.Context, logger *slog.Logger, stage Stage, command string, started time.Time) RunResult {
	r.status.stageStarted(started, stage)

	begin := time.Now()
	output, exitStatus, err := r.commands.Run(ctx, command)

	res := RunResult{
		Stage:      stage,
		Succeeded:  err == nil && exitStatus == 0,
		Output:     output,
		ExitStatus: exitStatus,
		Duration:   time.Since(begin),
		Err:        err,
	}

	attrs := []any{
		slog.String("stage", stage.String()),
		slog.String("command", command),
		slog.Int("exitStatus", exitStatus),
		slog.Duration("duration", res.Duration),
	}

	if err != nil {
		logger.Warn("command did not complete", append(attrs, slog.String("error", err.Error()))...)
	} else {
		logger.Debug("command finished", attrs...)
	}

	return res
}
