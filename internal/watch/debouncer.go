package watch

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid events into a single delivery on C.
// Only the last event within the configured interval is delivered.
type Debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	lastPath string
	fired    chan string
}

// NewDebouncer creates a debouncer that waits for interval of quiet before
// delivering the path of the last event.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{
		interval: interval,
		fired:    make(chan string, 1),
	}
}

// C delivers debounced paths. At most one delivery is pending at a time.
func (d *Debouncer) C() <-chan string {
	return d.fired
}

// Trigger records an event for the given path. If no further events arrive
// within the debounce interval, the path is delivered on C.
func (d *Debouncer) Trigger(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastPath = path

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		p := d.lastPath
		d.mu.Unlock()

		select {
		case d.fired <- p:
		default:
		}
	})
}

// Stop cancels any pending timer and discards an undelivered path. It
// reports whether anything was discarded.
func (d *Debouncer) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	discarded := false

	if d.timer != nil {
		discarded = d.timer.Stop()
		d.timer = nil
	}

	select {
	case <-d.fired:
		discarded = true
	default:
	}

	return discarded
}
