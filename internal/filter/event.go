package filter

import (
	"fmt"
	"strings"
)

// EventKind classifies a raw filesystem notification.
type EventKind int

// Supported event kinds.
const (
	KindOther EventKind = iota
	KindCreated
	KindModified
	KindDeleted
)

var kindNames = map[EventKind]string{
	KindOther:    "other",
	KindCreated:  "created",
	KindModified: "modified",
	KindDeleted:  "deleted",
}

// String returns the lower-case name used in configuration and logs.
func (k EventKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("EventKind(%d)", int(k))
}

// ParseEventKind converts a configuration value into an EventKind.
func ParseEventKind(s string) (EventKind, error) {
	needle := strings.ToLower(strings.TrimSpace(s))

	for kind, name := range kindNames {
		if name == needle {
			return kind, nil
		}
	}

	return KindOther, fmt.Errorf("unknown event kind %q: must be one of created, modified, deleted, other", s)
}

// ParseEventKinds converts a list of configuration values. Duplicates are
// collapsed; order is preserved.
func ParseEventKinds(values []string) ([]EventKind, error) {
	seen := make(map[EventKind]bool, len(values))
	kinds := make([]EventKind, 0, len(values))

	for _, v := range values {
		kind, err := ParseEventKind(v)
		if err != nil {
			return nil, err
		}

		if seen[kind] {
			continue
		}

		seen[kind] = true
		kinds = append(kinds, kind)
	}

	return kinds, nil
}

// ChangeEvent is a single notification delivered by the event source.
type ChangeEvent struct {
	Path  string
	Kind  EventKind
	IsDir bool
}
