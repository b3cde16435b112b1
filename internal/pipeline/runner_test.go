package pipeline

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/retest/internal/outdiff"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type response struct {
	output string
	status int
	err    error
}

// scriptedRunner replays responses in call order and records the commands
// it was asked to run.
type scriptedRunner struct {
	responses []response
	calls     []string
}

func (s *scriptedRunner) Run(_ context.Context, command string) (string, int, error) {
	s.calls = append(s.calls, command)

	if len(s.responses) == 0 {
		return "", 0, nil
	}

	r := s.responses[0]
	s.responses = s.responses[1:]

	return r.output, r.status, r.err
}

func (s *scriptedRunner) push(rs ...response) {
	s.responses = append(s.responses, rs...)
}

func newTestRunner(t *testing.T, build, test string, cmds CommandRunner, differ outdiff.Differ) (*Runner, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer

	r, err := New(Options{
		BuildCommand: build,
		TestCommand:  test,
		Commands:     cmds,
		Differ:       differ,
		Color:        true,
		Out:          &buf,
		Now:          func() time.Time { return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	return r, &buf
}

// ---------------------------------------------------------------------------
// New
// ---------------------------------------------------------------------------

func TestNew_RequiresCommands(t *testing.T) {
	_, err := New(Options{TestCommand: "./test.sh"})
	assert.ErrorContains(t, err, "build command is required")

	_, err = New(Options{BuildCommand: "./build.sh"})
	assert.ErrorContains(t, err, "test command is required")
}

func TestNew_Defaults(t *testing.T) {
	r, err := New(Options{BuildCommand: "b", TestCommand: "t"})
	require.NoError(t, err)

	assert.IsType(t, ExecRunner{}, r.commands)
	assert.IsType(t, outdiff.CharDiffer{}, r.differ)

	_, ok := r.LastTestOutput()
	assert.False(t, ok)
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

func TestRun_BuildFailureSkipsTest(t *testing.T) {
	cmds := &scriptedRunner{}
	cmds.push(response{output: "error: syntax\n", status: 1})

	r, out := newTestRunner(t, "./build.sh", "./test.sh", cmds, nil)
	rep := r.Run(context.Background())

	assert.Equal(t, []string{"./build.sh"}, cmds.calls)
	assert.False(t, rep.Build.Succeeded)
	assert.Equal(t, StageBuild, rep.Build.Stage)
	assert.Equal(t, 1, rep.Build.ExitStatus)
	assert.Nil(t, rep.Test)
	assert.False(t, rep.Succeeded())
	assert.Same(t, &rep.Build, rep.Failed())

	assert.Contains(t, out.String(), "Build failed (exit 1)")
	assert.Contains(t, out.String(), "error: syntax\n")
	assert.NotContains(t, out.String(), "Test failed")

	_, ok := r.LastTestOutput()
	assert.False(t, ok)
}

func TestRun_BuildFailureKeepsPreviousOutput(t *testing.T) {
	cmds := &scriptedRunner{}
	cmds.push(
		response{}, response{output: "ok: 3 passed\n"},
		response{output: "error: syntax\n", status: 2},
	)

	r, _ := newTestRunner(t, "./build.sh", "./test.sh", cmds, nil)
	r.Run(context.Background())
	rep := r.Run(context.Background())

	assert.False(t, rep.Build.Succeeded)

	last, ok := r.LastTestOutput()
	require.True(t, ok)
	assert.Equal(t, "ok: 3 passed\n", last)
}

func TestRun_TestFailureKeepsPreviousOutput(t *testing.T) {
	cmds := &scriptedRunner{}
	cmds.push(
		response{}, response{output: "ok: 3 passed\n"},
		response{}, response{output: "boom\n", status: 3},
	)

	r, out := newTestRunner(t, "./build.sh", "./test.sh", cmds, nil)
	r.Run(context.Background())
	rep := r.Run(context.Background())

	require.NotNil(t, rep.Test)
	assert.True(t, rep.Build.Succeeded)
	assert.False(t, rep.Test.Succeeded)
	assert.Equal(t, 3, rep.Test.ExitStatus)
	assert.Same(t, rep.Test, rep.Failed())
	assert.Contains(t, out.String(), "Test failed (exit 3)")
	assert.Contains(t, out.String(), "boom\n")

	last, _ := r.LastTestOutput()
	assert.Equal(t, "ok: 3 passed\n", last)
}

func TestRun_SuccessStoresOutput(t *testing.T) {
	cmds := &scriptedRunner{}
	cmds.push(response{}, response{output: "ok: 3 passed\n"})

	r, out := newTestRunner(t, "./build.sh", "./test.sh", cmds, outdiff.LineDiffer{})
	rep := r.Run(context.Background())

	assert.Equal(t, []string{"./build.sh", "./test.sh"}, cmds.calls)
	assert.True(t, rep.Succeeded())
	assert.Nil(t, rep.Failed())
	assert.True(t, rep.FirstRun)
	assert.False(t, rep.Changed())
	assert.Equal(t, "ok: 3 passed\n", rep.Diff)
	assert.NotEmpty(t, rep.ID)

	assert.Contains(t, out.String(), "[2024-05-01 12:30:00] Running build command...")
	assert.Contains(t, out.String(), "Build successful!")
	assert.Contains(t, out.String(), "Running test command...")
	assert.Contains(t, out.String(), "Test output (13 B):")

	last, ok := r.LastTestOutput()
	require.True(t, ok)
	assert.Equal(t, "ok: 3 passed\n", last)
}

func TestRun_IdenticalOutputHasNoHighlights(t *testing.T) {
	cmds := &scriptedRunner{}
	cmds.push(
		response{}, response{output: "ok: 3 passed\n"},
		response{}, response{output: "ok: 3 passed\n"},
	)

	r, out := newTestRunner(t, "./build.sh", "./test.sh", cmds, nil)
	r.Run(context.Background())
	out.Reset()

	rep := r.Run(context.Background())

	assert.False(t, rep.FirstRun)
	assert.False(t, rep.Changed())
	assert.Equal(t, "ok: 3 passed\n", rep.Diff)
	assert.NotContains(t, rep.Diff, "\x1b[")
	assert.Contains(t, out.String(), "no changes since last successful run")
}

func TestRun_ChangedOutputIsHighlighted(t *testing.T) {
	cmds := &scriptedRunner{}
	cmds.push(
		response{}, response{output: "ok: 3 passed\n"},
		response{}, response{output: "ok: 2 passed\nFAIL: case3\n"},
	)

	r, out := newTestRunner(t, "./build.sh", "./test.sh", cmds, outdiff.LineDiffer{})
	r.Run(context.Background())
	out.Reset()

	rep := r.Run(context.Background())

	assert.True(t, rep.Changed())
	assert.Contains(t, out.String(), "Test output (25 B, 25 B inserted, 13 B removed):")
	assert.Equal(t, "ok: 3 passed\n", outdiff.Before(rep.Segments))
	assert.Equal(t, "ok: 2 passed\nFAIL: case3\n", outdiff.After(rep.Segments))
	assert.Contains(t, rep.Diff, "\x1b[92m")
	assert.Contains(t, rep.Diff, "\x1b[91m")
	assert.Contains(t, rep.Diff, "FAIL: case3\n")
}

func TestRun_DiffAgainstLastKnownGood(t *testing.T) {
	cmds := &scriptedRunner{}
	cmds.push(
		response{}, response{output: "A\n"},
		response{}, response{output: "B\n", status: 1},
		response{}, response{output: "A\n"},
	)

	r, _ := newTestRunner(t, "./build.sh", "./test.sh", cmds, nil)
	r.Run(context.Background())
	r.Run(context.Background())
	rep := r.Run(context.Background())

	assert.True(t, rep.Succeeded())
	assert.False(t, rep.Changed(), "failed run in between must not become the baseline")
}

func TestRun_IdenticalCommandsLabelledByStage(t *testing.T) {
	cmds := &scriptedRunner{}
	cmds.push(
		response{output: "build broke\n", status: 1},
		response{}, response{output: "test broke\n", status: 1},
	)

	r, out := newTestRunner(t, "./same.sh", "./same.sh", cmds, nil)

	rep := r.Run(context.Background())
	assert.Equal(t, StageBuild, rep.Failed().Stage)
	assert.Contains(t, out.String(), "Build failed")
	assert.NotContains(t, out.String(), "Test failed")

	out.Reset()

	rep = r.Run(context.Background())
	assert.Equal(t, StageTest, rep.Failed().Stage)
	assert.Contains(t, out.String(), "Test failed")
	assert.NotContains(t, out.String(), "Build failed")
}

func TestRun_StartErrorIsContained(t *testing.T) {
	cmds := &scriptedRunner{}
	cmds.push(response{status: -1, err: errors.New("executable file not found")})

	r, out := newTestRunner(t, "./missing.sh", "./test.sh", cmds, nil)
	rep := r.Run(context.Background())

	assert.False(t, rep.Build.Succeeded)
	assert.Equal(t, -1, rep.Build.ExitStatus)
	assert.Error(t, rep.Build.Err)
	assert.Contains(t, out.String(), "Build failed: executable file not found")
}

func TestStage_String(t *testing.T) {
	assert.Equal(t, "build", StageBuild.String())
	assert.Equal(t, "test", StageTest.String())
	assert.Equal(t, "Stage(9)", Stage(9).String())
}

func TestStatusLines_ColorsAreReset(t *testing.T) {
	cmds := &scriptedRunner{}
	cmds.push(
		response{}, response{output: "boom\n", status: 1},
		response{}, response{output: "ok\n"},
		response{}, response{output: "ok\n"},
	)

	r, out := newTestRunner(t, "./build.sh", "./test.sh", cmds, nil)
	r.Run(context.Background())
	r.Run(context.Background())
	r.Run(context.Background())

	assert.Contains(t, out.String(), "\x1b[32mBuild successful!\x1b[0m\n")
	assert.Contains(t, out.String(), "\x1b[31;1mTest failed (exit 1). Output:\x1b[0m\n")
	assert.Contains(t, out.String(), "\x1b[2m(no changes since last successful run)\x1b[0m\n")
}

func TestStatusLines_NoColor(t *testing.T) {
	var buf bytes.Buffer

	w := newStatusWriter(&buf, false)
	w.buildSucceeded()
	w.failure(RunResult{Stage: StageBuild, ExitStatus: 2, Output: "error: syntax"})

	assert.Equal(t, "Build successful!\nBuild failed (exit 2). Output:\nerror: syntax\n", buf.String())
}
