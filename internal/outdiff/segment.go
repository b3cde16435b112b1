package outdiff

import (
	"fmt"
	"strings"
)

// SegmentKind tags a run of text in a diff.
type SegmentKind int

// Segment kinds.
const (
	Unchanged SegmentKind = iota
	Inserted
	Removed
)

// String returns the lower-case name of the kind.
func (k SegmentKind) String() string {
	switch k {
	case Unchanged:
		return "unchanged"
	case Inserted:
		return "inserted"
	case Removed:
		return "removed"
	default:
		return fmt.Sprintf("SegmentKind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k SegmentKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Segment is a contiguous run of text sharing one kind.
type Segment struct {
	Text string      `json:"text" yaml:"text"`
	Kind SegmentKind `json:"kind" yaml:"kind"`
}

// Before reassembles the previous text from unchanged and removed segments.
func Before(segments []Segment) string {
	return join(segments, Removed)
}

// After reassembles the current text from unchanged and inserted segments.
func After(segments []Segment) string {
	return join(segments, Inserted)
}

func join(segments []Segment, side SegmentKind) string {
	var sb strings.Builder

	for _, s := range segments {
		if s.Kind == Unchanged || s.Kind == side {
			sb.WriteString(s.Text)
		}
	}

	return sb.String()
}

// Changed reports whether any segment is an insertion or removal.
func Changed(segments []Segment) bool {
	for _, s := range segments {
		if s.Kind != Unchanged {
			return true
		}
	}

	return false
}

// Summary counts inserted and removed bytes.
type Summary struct {
	Inserted int
	Removed  int
}

// Summarize counts the bytes in inserted and removed segments.
func Summarize(segments []Segment) Summary {
	var s Summary

	for _, seg := range segments {
		switch seg.Kind {
		case Inserted:
			s.Inserted += len(seg.Text)
		case Removed:
			s.Removed += len(seg.Text)
		}
	}

	return s
}

// appendSegment adds text to segments, merging with the previous segment
// when the kinds match. Empty text is dropped.
func appendSegment(segments []Segment, kind SegmentKind, text string) []Segment {
	if text == "" {
		return segments
	}

	if n := len(segments); n > 0 && segments[n-1].Kind == kind {
		segments[n-1].Text += text
		return segments
	}

	return append(segments, Segment{Text: text, Kind: kind})
}
