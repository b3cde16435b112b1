package filter

import "strings"

// Verdict explains why an event was accepted or skipped.
type Verdict int

// Possible verdicts, in the order they are checked.
const (
	Accepted Verdict = iota
	SkippedKind
	SkippedDirectory
	SkippedSuffix
)

// String returns a short human-readable description.
func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case SkippedKind:
		return "event kind not watched"
	case SkippedDirectory:
		return "directory event"
	case SkippedSuffix:
		return "suffix mismatch"
	default:
		return "unknown"
	}
}

// Matches reports whether event should trigger a pipeline run. Directory
// events never match. An empty suffixes list matches every file; otherwise
// the path must end with one of the suffixes (case-sensitive).
func Matches(event ChangeEvent, suffixes []string) bool {
	if event.IsDir {
		return false
	}

	if len(suffixes) == 0 {
		return true
	}

	for _, s := range suffixes {
		if strings.HasSuffix(event.Path, s) {
			return true
		}
	}

	return false
}

// PathFilter combines the event-kind policy with suffix matching.
type PathFilter struct {
	suffixes []string
	kinds    map[EventKind]bool
}

// New creates a PathFilter. When no kinds are given, only KindModified
// events are allowed through.
func New(suffixes []string, kinds ...EventKind) *PathFilter {
	if len(kinds) == 0 {
		kinds = []EventKind{KindModified}
	}

	allowed := make(map[EventKind]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}

	return &PathFilter{
		suffixes: append([]string(nil), suffixes...),
		kinds:    allowed,
	}
}

// Suffixes returns a copy of the configured suffixes.
func (f *PathFilter) Suffixes() []string {
	return append([]string(nil), f.suffixes...)
}

// Check classifies event.
func (f *PathFilter) Check(event ChangeEvent) Verdict {
	if !f.kinds[event.Kind] {
		return SkippedKind
	}

	if event.IsDir {
		return SkippedDirectory
	}

	if !Matches(event, f.suffixes) {
		return SkippedSuffix
	}

	return Accepted
}

// SkipDir reports whether a directory with the given base name is excluded
// from recursive watching.
func SkipDir(name string, excludes []string) bool {
	for _, e := range excludes {
		if name == e {
			return true
		}
	}

	return false
}
