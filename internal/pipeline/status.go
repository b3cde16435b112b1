package pipeline

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/hupe1980/retest/internal/outdiff"
)

const timestampLayout = "2006-01-02 15:04:05"

// statusWriter prints the human-readable progress of a pipeline run.
type statusWriter struct {
	out  io.Writer
	ok   *color.Color
	fail *color.Color
	dim  *color.Color
}

func newStatusWriter(out io.Writer, colorize bool) *statusWriter {
	w := &statusWriter{
		out:  out,
		ok:   color.New(color.FgGreen),
		fail: color.New(color.FgRed, color.Bold),
		dim:  color.New(color.Faint),
	}

	for _, c := range []*color.Color{w.ok, w.fail, w.dim} {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return w
}

func (w *statusWriter) stageStarted(ts time.Time, stage Stage) {
	_, _ = fmt.Fprintf(w.out, "\n[%s] Running %s command...\n", ts.Format(timestampLayout), stage)
}

func (w *statusWriter) buildSucceeded() {
	w.line(w.ok, "Build successful!")
}

func (w *statusWriter) failure(res RunResult) {
	label := "Build"
	if res.Stage == StageTest {
		label = "Test"
	}

	if res.Err != nil {
		w.line(w.fail, fmt.Sprintf("%s failed: %v. Output:", label, res.Err))
	} else {
		w.line(w.fail, fmt.Sprintf("%s failed (exit %d). Output:", label, res.ExitStatus))
	}

	writeBlock(w.out, res.Output)
}

func (w *statusWriter) testOutput(rep *Report) {
	size := humanize.Bytes(uint64(len(rep.Test.Output)))

	if rep.Changed() {
		sum := outdiff.Summarize(rep.Segments)
		_, _ = fmt.Fprintf(w.out, "Test output (%s, %s inserted, %s removed):\n", size,
			humanize.Bytes(uint64(sum.Inserted)), humanize.Bytes(uint64(sum.Removed)))
	} else {
		_, _ = fmt.Fprintf(w.out, "Test output (%s):\n", size)
	}

	writeBlock(w.out, rep.Diff)

	if !rep.FirstRun && !rep.Changed() {
		w.line(w.dim, "(no changes since last successful run)")
	}
}

// line writes text in c followed by a newline. The reset code is written
// even when color.NoColor is set globally, which Fprint does not guarantee.
func (w *statusWriter) line(c *color.Color, text string) {
	_, _ = io.WriteString(w.out, c.Sprint(text)+"\n")
}

// writeBlock prints text and terminates it with a newline if it lacks one.
func writeBlock(out io.Writer, text string) {
	_, _ = io.WriteString(out, text)

	if text != "" && !strings.HasSuffix(text, "\n") {
		_, _ = io.WriteString(out, "\n")
	}
}
