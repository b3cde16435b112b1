package outdiff

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allDiffers() map[string]Differ {
	return map[string]Differ{
		"line": LineDiffer{},
		"char": NewCharDiffer(),
	}
}

func textOf(segments []Segment, kind SegmentKind) string {
	var sb strings.Builder

	for _, s := range segments {
		if s.Kind == kind {
			sb.WriteString(s.Text)
		}
	}

	return sb.String()
}

// ---------------------------------------------------------------------------
// Round trip
// ---------------------------------------------------------------------------

func TestSegments_RoundTrip(t *testing.T) {
	pairs := []struct {
		name     string
		previous string
		current  string
	}{
		{"both empty", "", ""},
		{"from empty", "", "ok: 3 passed\n"},
		{"to empty", "ok: 3 passed\n", ""},
		{"identical", "a\nb\nc\n", "a\nb\nc\n"},
		{"appended line", "ok: 3 passed\n", "ok: 2 passed\nFAIL: case3\n"},
		{"no trailing newline", "a\nb", "a\nc"},
		{"trailing whitespace", "line \n", "line\n"},
		{"line endings", "a\r\nb\r\n", "a\nb\n"},
		{"reordered", "one\ntwo\nthree\n", "three\none\ntwo\n"},
		{"unicode", "größe: 1\n", "größe: 2\n"},
		{"invalid utf-8 identical", "ok: 3 passed\n\xff\xfe binary\n", "ok: 3 passed\n\xff\xfe binary\n"},
		{"invalid utf-8 changed", "ok: 3 passed\n\xff\xfe binary\n", "ok: 2 passed\n\xfe\xff binary\n"},
		{"invalid utf-8 one side", "größe\n", "gr\xc3\n"},
		{"stand-in rune with invalid byte", "\U0010FF41\n", "\xff\n"},
	}

	for name, d := range allDiffers() {
		for _, p := range pairs {
			t.Run(name+"/"+p.name, func(t *testing.T) {
				segs := d.Segments(p.previous, p.current)
				assert.Equal(t, p.previous, Before(segs))
				assert.Equal(t, p.current, After(segs))
			})
		}
	}
}

func TestSegments_Identical(t *testing.T) {
	for name, d := range allDiffers() {
		t.Run(name, func(t *testing.T) {
			segs := d.Segments("ok: 3 passed\n", "ok: 3 passed\n")
			require.Len(t, segs, 1)
			assert.Equal(t, Unchanged, segs[0].Kind)
			assert.False(t, Changed(segs))
		})
	}
}

func TestSegments_BothEmpty(t *testing.T) {
	for name, d := range allDiffers() {
		t.Run(name, func(t *testing.T) {
			assert.Empty(t, d.Segments("", ""))
		})
	}
}

func TestSegments_NoEmptyOrAdjacentDuplicates(t *testing.T) {
	for name, d := range allDiffers() {
		t.Run(name, func(t *testing.T) {
			segs := d.Segments("a\nb\nc\nd\n", "a\nx\ny\nd\ne\n")
			for i, s := range segs {
				assert.NotEmpty(t, s.Text)

				if i > 0 {
					assert.NotEqual(t, segs[i-1].Kind, s.Kind, "adjacent segments must differ in kind")
				}
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Line granularity
// ---------------------------------------------------------------------------

func TestLineDiffer_ReplacedAndInserted(t *testing.T) {
	segs := LineDiffer{}.Segments("ok: 3 passed\n", "ok: 2 passed\nFAIL: case3\n")

	assert.Equal(t, []Segment{
		{Text: "ok: 3 passed\n", Kind: Removed},
		{Text: "ok: 2 passed\nFAIL: case3\n", Kind: Inserted},
	}, segs)
}

func TestLineDiffer_KeepsContext(t *testing.T) {
	segs := LineDiffer{}.Segments("a\nb\nc\n", "a\nB\nc\n")

	assert.Equal(t, []Segment{
		{Text: "a\n", Kind: Unchanged},
		{Text: "b\n", Kind: Removed},
		{Text: "B\n", Kind: Inserted},
		{Text: "c\n", Kind: Unchanged},
	}, segs)
}

func TestLineDiffer_PureInsertion(t *testing.T) {
	segs := LineDiffer{}.Segments("a\nc\n", "a\nb\nc\n")

	assert.Equal(t, []Segment{
		{Text: "a\n", Kind: Unchanged},
		{Text: "b\n", Kind: Inserted},
		{Text: "c\n", Kind: Unchanged},
	}, segs)
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, splitLines(""))
	assert.Equal(t, []string{"a\n", "b"}, splitLines("a\nb"))
	assert.Equal(t, []string{"a\n", "b\n"}, splitLines("a\nb\n"))
	assert.Equal(t, []string{"\n", "\n"}, splitLines("\n\n"))
}

// ---------------------------------------------------------------------------
// Character granularity
// ---------------------------------------------------------------------------

func TestCharDiffer_HighlightsNewFailure(t *testing.T) {
	segs := NewCharDiffer().Segments("ok: 3 passed\n", "ok: 2 passed\nFAIL: case3\n")

	assert.Contains(t, textOf(segs, Inserted), "FAIL: case3")
	assert.Contains(t, textOf(segs, Inserted), "2")
	assert.Contains(t, textOf(segs, Removed), "3")
	assert.Contains(t, textOf(segs, Unchanged), "ok: ")
}

func TestCharDiffer_SemanticCleanupMergesNoise(t *testing.T) {
	// Raw Myers output interleaves many single-character edits here; semantic
	// cleanup collapses them into one removal and one insertion.
	segs := NewCharDiffer().Segments("mouse", "sofas")

	assert.Equal(t, []Segment{
		{Text: "mouse", Kind: Removed},
		{Text: "sofas", Kind: Inserted},
	}, segs)
}

func TestCharDiffer_InvalidUTF8Unchanged(t *testing.T) {
	out := "ok: 3 passed\n\xff\xfe binary\n"

	segs := NewCharDiffer().Segments(out, out)

	assert.Equal(t, []Segment{{Text: out, Kind: Unchanged}}, segs)
}

func TestCharDiffer_InvalidUTF8SingleByteEdit(t *testing.T) {
	segs := NewCharDiffer().Segments("a\xffb", "a\xfeb")

	assert.Equal(t, "a\xffb", Before(segs))
	assert.Equal(t, "a\xfeb", After(segs))
	assert.Equal(t, Summary{Inserted: 1, Removed: 1}, Summarize(segs))
}

func TestRawBytes_RoundTrip(t *testing.T) {
	in := "x\xff\xc3(größe)\x80"

	enc, ok := encodeRawBytes(in)
	require.True(t, ok)
	assert.True(t, utf8.ValidString(enc))
	assert.Equal(t, in, decodeRawBytes(enc))

	_, ok = encodeRawBytes("\U0010FF00")
	assert.False(t, ok)
}

func TestCharDiffer_NoTimeout(t *testing.T) {
	d := CharDiffer{}
	segs := d.Segments("abc", "abd")

	assert.Equal(t, "abc", Before(segs))
	assert.Equal(t, "abd", After(segs))
}

// ---------------------------------------------------------------------------
// Granularity
// ---------------------------------------------------------------------------

func TestParseGranularity(t *testing.T) {
	g, err := ParseGranularity("LINE")
	require.NoError(t, err)
	assert.Equal(t, GranularityLine, g)

	g, err = ParseGranularity("char")
	require.NoError(t, err)
	assert.Equal(t, GranularityChar, g)

	_, err = ParseGranularity("word")
	assert.ErrorContains(t, err, "invalid granularity")
}

func TestNew(t *testing.T) {
	d, err := New(GranularityLine)
	require.NoError(t, err)
	assert.IsType(t, LineDiffer{}, d)

	d, err = New(GranularityChar)
	require.NoError(t, err)
	assert.IsType(t, CharDiffer{}, d)

	_, err = New("word")
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Segment{
		{Text: "keep", Kind: Unchanged},
		{Text: "abc", Kind: Inserted},
		{Text: "de", Kind: Removed},
		{Text: "f", Kind: Inserted},
	})

	assert.Equal(t, Summary{Inserted: 4, Removed: 2}, s)
}
