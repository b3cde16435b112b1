package outdiff

import (
	"strings"

	"github.com/fatih/color"
)

// Renderer wraps segments in ANSI color codes.
type Renderer struct {
	insert *color.Color
	remove *color.Color
}

// NewRenderer returns a Renderer. When colorize is false, segments are
// emitted as plain text regardless of terminal detection.
func NewRenderer(colorize bool) *Renderer {
	r := &Renderer{
		insert: color.New(color.FgHiGreen),
		remove: color.New(color.FgHiRed),
	}

	if colorize {
		r.insert.EnableColor()
		r.remove.EnableColor()
	} else {
		r.insert.DisableColor()
		r.remove.DisableColor()
	}

	return r
}

// Render concatenates segments in document order.
func (r *Renderer) Render(segments []Segment) string {
	var sb strings.Builder

	for _, s := range segments {
		switch s.Kind {
		case Inserted:
			sb.WriteString(r.insert.Sprint(s.Text))
		case Removed:
			sb.WriteString(r.remove.Sprint(s.Text))
		default:
			sb.WriteString(s.Text)
		}
	}

	return sb.String()
}

// Compare returns the segments turning previous into current. A nil
// previous means there is nothing to compare against: current comes back as
// a single unchanged segment.
func Compare(previous *string, current string, d Differ) []Segment {
	if previous == nil {
		return appendSegment(nil, Unchanged, current)
	}

	return d.Segments(*previous, current)
}

// Diff renders the difference between previous and current. With a nil
// previous the result is current, unmodified.
func Diff(previous *string, current string, d Differ, r *Renderer) string {
	return r.Render(Compare(previous, current, d))
}
