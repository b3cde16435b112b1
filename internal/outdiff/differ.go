package outdiff

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Granularity selects a diff strategy.
type Granularity string

// Supported granularities.
const (
	GranularityLine Granularity = "line"
	GranularityChar Granularity = "char"
)

// ParseGranularity validates a configuration value.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case GranularityLine, GranularityChar:
		return g, nil
	default:
		return "", fmt.Errorf("invalid granularity %q: must be one of line, char", s)
	}
}

// Differ computes the segments that turn previous into current.
type Differ interface {
	Segments(previous, current string) []Segment
}

// New returns the Differ for g.
func New(g Granularity) (Differ, error) {
	switch g {
	case GranularityLine:
		return LineDiffer{}, nil
	case GranularityChar:
		return NewCharDiffer(), nil
	default:
		return nil, fmt.Errorf("invalid granularity %q", g)
	}
}

// ---------------------------------------------------------------------------
// Line granularity
// ---------------------------------------------------------------------------

// LineDiffer aligns texts line by line. Each line keeps its terminator, so
// "\r\n" and "\n" endings compare as different lines. Only unchanged,
// inserted and removed lines are produced; near-match hints are never
// emitted.
type LineDiffer struct{}

// Segments implements Differ.
func (LineDiffer) Segments(previous, current string) []Segment {
	a := splitLines(previous)
	b := splitLines(current)

	m := difflib.NewMatcherWithJunk(a, b, false, nil)

	var segments []Segment

	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'e':
			segments = appendSegment(segments, Unchanged, strings.Join(a[op.I1:op.I2], ""))
		case 'd':
			segments = appendSegment(segments, Removed, strings.Join(a[op.I1:op.I2], ""))
		case 'i':
			segments = appendSegment(segments, Inserted, strings.Join(b[op.J1:op.J2], ""))
		case 'r':
			segments = appendSegment(segments, Removed, strings.Join(a[op.I1:op.I2], ""))
			segments = appendSegment(segments, Inserted, strings.Join(b[op.J1:op.J2], ""))
		}
	}

	return segments
}

// splitLines splits s after every "\n". Unlike difflib.SplitLines it does not
// invent a terminator for the final line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}

	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	return lines
}

// ---------------------------------------------------------------------------
// Character granularity
// ---------------------------------------------------------------------------

// CharDiffer runs a character-level Myers diff followed by semantic cleanup.
// Text is compared as runes; bytes that are not valid UTF-8 are compared as
// single characters and come back unchanged.
type CharDiffer struct {
	// Timeout bounds the diff computation; zero means no limit. When the
	// limit is hit the result is still correct but less minimal.
	Timeout time.Duration
}

// NewCharDiffer returns a CharDiffer with the diff-match-patch default
// timeout of one second.
func NewCharDiffer() CharDiffer {
	return CharDiffer{Timeout: time.Second}
}

// Segments implements Differ.
func (d CharDiffer) Segments(previous, current string) []Segment {
	raw := false

	if !utf8.ValidString(previous) || !utf8.ValidString(current) {
		encPrev, okPrev := encodeRawBytes(previous)
		encCurr, okCurr := encodeRawBytes(current)

		// Inputs that already use the stand-in runes fall back to the
		// byte-exact line diff.
		if !okPrev || !okCurr {
			return LineDiffer{}.Segments(previous, current)
		}

		previous, current, raw = encPrev, encCurr, true
	}

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = d.Timeout

	diffs := dmp.DiffMain(previous, current, true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var segments []Segment

	for _, df := range diffs {
		text := df.Text
		if raw {
			text = decodeRawBytes(text)
		}

		switch df.Type {
		case diffmatchpatch.DiffInsert:
			segments = appendSegment(segments, Inserted, text)
		case diffmatchpatch.DiffDelete:
			segments = appendSegment(segments, Removed, text)
		case diffmatchpatch.DiffEqual:
			segments = appendSegment(segments, Unchanged, text)
		}
	}

	return segments
}

// rawByteBase maps an invalid byte b to the private-use rune rawByteBase+b
// while diffing.
const rawByteBase rune = 0x10FF00

// encodeRawBytes replaces every byte that is not part of valid UTF-8 with its
// private-use stand-in. It reports false when s already contains a rune from
// the stand-in range.
func encodeRawBytes(s string) (string, bool) {
	var sb strings.Builder

	sb.Grow(len(s))

	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])

		switch {
		case r == utf8.RuneError && size == 1:
			sb.WriteRune(rawByteBase + rune(s[i]))
		case r >= rawByteBase && r <= rawByteBase+0xFF:
			return s, false
		default:
			sb.WriteString(s[i : i+size])
		}

		i += size
	}

	return sb.String(), true
}

// decodeRawBytes reverses encodeRawBytes.
func decodeRawBytes(s string) string {
	var sb strings.Builder

	sb.Grow(len(s))

	for _, r := range s {
		if r >= rawByteBase && r <= rawByteBase+0xFF {
			sb.WriteByte(byte(r - rawByteBase))
			continue
		}

		sb.WriteRune(r)
	}

	return sb.String()
}
