package outdiff

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/pmezard/go-difflib/difflib"
)

// UnifiedOptions configures unified diff output.
type UnifiedOptions struct {
	PreviousLabel string
	CurrentLabel  string
	Context       int
}

// DefaultUnifiedOptions returns sensible default unified diff options.
func DefaultUnifiedOptions() UnifiedOptions {
	return UnifiedOptions{
		PreviousLabel: "previous",
		CurrentLabel:  "current",
		Context:       3,
	}
}

// Unified returns a classic unified diff of two outputs, or "" when they are
// equal.
func Unified(previous, current string, opts UnifiedOptions) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        terminatedLines(previous),
		B:        terminatedLines(current),
		FromFile: opts.PreviousLabel,
		ToFile:   opts.CurrentLabel,
		Context:  opts.Context,
	}

	unified, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("computing diff: %w", err)
	}

	return unified, nil
}

// WriteUnified writes unified diff text with optional ANSI colors.
func WriteUnified(w io.Writer, unified string, colorize bool) {
	header := color.New(color.Bold)
	hunk := color.New(color.FgCyan)
	added := color.New(color.FgHiGreen)
	removed := color.New(color.FgHiRed)

	for _, c := range []*color.Color{header, hunk, added, removed} {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	for _, line := range strings.SplitAfter(unified, "\n") {
		if line == "" {
			continue
		}

		// Sprint always pairs the color with a reset, unlike Fprint, which
		// skips the reset when color.NoColor is set globally.
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
			line = header.Sprint(line)
		case strings.HasPrefix(line, "@@"):
			line = hunk.Sprint(line)
		case strings.HasPrefix(line, "-"):
			line = removed.Sprint(line)
		case strings.HasPrefix(line, "+"):
			line = added.Sprint(line)
		}

		_, _ = io.WriteString(w, line)
	}
}

// terminatedLines splits s into lines that all end in "\n", which difflib
// needs for well-formed unified output.
func terminatedLines(s string) []string {
	lines := splitLines(s)

	if n := len(lines); n > 0 && !strings.HasSuffix(lines[n-1], "\n") {
		lines[n-1] += "\n"
	}

	return lines
}
