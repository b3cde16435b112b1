package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/hupe1980/retest/internal/filter"
	"github.com/hupe1980/retest/internal/pipeline"
)

// ErrSourceClosed is returned when the event source shuts down on its own.
var ErrSourceClosed = errors.New("event source closed")

// State is the watch loop's position in its state machine.
type State int32

// Loop states.
const (
	StateIdle State = iota
	StateRunning
	StateArmed
	StateStopped
)

// String returns a lower-case state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateArmed:
		return "armed"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Pipeline runs one build-and-test invocation.
type Pipeline interface {
	Run(ctx context.Context) *pipeline.Report
}

// Options configures the watch behaviour.
type Options struct {
	// Root is the directory to watch recursively.
	Root string

	// ExcludeDirs lists directory base names that are not watched.
	ExcludeDirs []string

	// Filter decides which events trigger a run.
	Filter *filter.PathFilter

	// Debounce is the quiet period before triggering a run. Zero runs the
	// pipeline immediately on each qualifying event.
	Debounce time.Duration

	// ArmWindow is how long a second interrupt stops the loop after a
	// manual rebuild.
	ArmWindow time.Duration

	// RunOnStart runs the pipeline once before waiting for events.
	RunOnStart bool

	// Interrupts delivers manual interrupt signals.
	Interrupts <-chan os.Signal

	// Clock times the arming window.
	Clock Clock

	// Logger is used for structured logging.
	Logger *slog.Logger

	// Out is the writer for user-facing status messages.
	Out io.Writer
}

// DefaultOptions returns sensible default watch options.
func DefaultOptions() Options {
	return Options{
		ExcludeDirs: []string{".git"},
		Filter:      filter.New([]string{".cpp", ".h"}),
		Debounce:    100 * time.Millisecond,
		ArmWindow:   time.Second,
		Clock:       realClock{},
		Logger:      slog.Default(),
		Out:         os.Stderr,
	}
}

// Loop is the single-threaded control loop. Pipeline invocations never
// overlap: events that arrive while a run is in progress are dropped.
type Loop struct {
	src       Source
	pipe      Pipeline
	opts      Options
	debouncer *Debouncer
	state     atomic.Int32
}

// NewLoop creates a Loop reading from src and running p.
func NewLoop(src Source, p Pipeline, opts Options) *Loop {
	def := DefaultOptions()

	if opts.Filter == nil {
		opts.Filter = def.Filter
	}

	if opts.ArmWindow <= 0 {
		opts.ArmWindow = def.ArmWindow
	}

	if opts.Clock == nil {
		opts.Clock = def.Clock
	}

	if opts.Logger == nil {
		opts.Logger = def.Logger
	}

	if opts.Out == nil {
		opts.Out = io.Discard
	}

	return &Loop{
		src:       src,
		pipe:      p,
		opts:      opts,
		debouncer: NewDebouncer(opts.Debounce),
	}
}

// State returns the current state. Safe to call from any goroutine.
func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) setState(s State) {
	if prev := State(l.state.Swap(int32(s))); prev != s {
		l.opts.Logger.Debug("watch state", slog.String("from", prev.String()), slog.String("to", s.String()))
	}
}

// Run blocks until the loop stops. It returns nil after a double interrupt
// or context cancellation, and an error when the event source fails.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		l.debouncer.Stop()

		if err := l.src.Close(); err != nil {
			l.opts.Logger.Debug("closing event source", slog.String("error", err.Error()))
		}
	}()

	l.setState(StateIdle)

	if l.opts.RunOnStart {
		l.runPipeline(ctx, "(initial)")
	}

	fmt.Fprintln(l.opts.Out, "Press Ctrl+C to trigger a build manually...")

	var disarm <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			l.setState(StateStopped)
			fmt.Fprintln(l.opts.Out, "\nshutting down watcher")

			return nil

		case event, ok := <-l.src.Events():
			if !ok {
				l.setState(StateStopped)
				return ErrSourceClosed
			}

			l.handleEvent(ctx, event)

		case err, ok := <-l.src.Errors():
			l.setState(StateStopped)

			if !ok {
				return ErrSourceClosed
			}

			return fmt.Errorf("watching %s: %w", l.opts.Root, err)

		case path := <-l.debouncer.C():
			l.runPipeline(ctx, path)

		case <-l.opts.Interrupts:
			if l.State() == StateArmed {
				l.stop()
				return nil
			}

			if l.manualRun(ctx) {
				l.stop()
				return nil
			}

			l.setState(StateArmed)
			disarm = l.opts.Clock.After(l.opts.ArmWindow)

		case <-disarm:
			disarm = nil

			l.setState(StateIdle)
			fmt.Fprintln(l.opts.Out, "reset")
		}
	}
}

func (l *Loop) handleEvent(ctx context.Context, event filter.ChangeEvent) {
	logger := l.opts.Logger

	if verdict := l.opts.Filter.Check(event); verdict != filter.Accepted {
		logger.Debug("skipping event",
			slog.String("path", event.Path),
			slog.String("kind", event.Kind.String()),
			slog.String("reason", verdict.String()),
		)

		return
	}

	fmt.Fprintf(l.opts.Out, "\nChange detected: %s\n", event.Path)

	if l.opts.Debounce > 0 {
		l.debouncer.Trigger(event.Path)
		return
	}

	l.runPipeline(ctx, event.Path)
}

// manualRun runs the pipeline for an interrupt. It reports whether a second
// interrupt arrived while the pipeline was running.
func (l *Loop) manualRun(ctx context.Context) bool {
	fmt.Fprintln(l.opts.Out, "Rebuilding...")
	l.runPipeline(ctx, "(manual)")

	select {
	case <-l.opts.Interrupts:
		return true
	default:
	}

	fmt.Fprintf(l.opts.Out, "Press Ctrl+C again within %s to stop...", l.opts.ArmWindow)

	return false
}

func (l *Loop) stop() {
	l.setState(StateStopped)
	fmt.Fprintln(l.opts.Out, "\nstopping watcher")
}

// runPipeline executes one invocation and then drops everything that queued
// up meanwhile. The state before the run is restored afterwards.
func (l *Loop) runPipeline(ctx context.Context, trigger string) {
	prev := l.State()
	l.setState(StateRunning)

	rep := l.pipe.Run(ctx)

	dropped := l.drainPending()

	l.setState(prev)

	attrs := []any{slog.String("trigger", trigger), slog.Int("dropped", dropped)}
	if rep != nil {
		attrs = append(attrs, slog.String("run", rep.ID), slog.Bool("succeeded", rep.Succeeded()))
	}

	l.opts.Logger.Debug("pipeline finished", attrs...)
}

// drainPending discards queued events and any pending debounced trigger.
func (l *Loop) drainPending() int {
	dropped := 0

	if l.debouncer.Stop() {
		dropped++
	}

	for {
		select {
		case _, ok := <-l.src.Events():
			if !ok {
				return dropped
			}

			dropped++
		default:
			return dropped
		}
	}
}

// Watch watches opts.Root with fsnotify and runs p on qualifying changes.
// SIGINT acts as a manual trigger; SIGTERM stops the watcher.
func Watch(ctx context.Context, opts Options, p Pipeline) error {
	src, err := NewFSSource(opts.Root, opts.ExcludeDirs, opts.Logger)
	if err != nil {
		return fmt.Errorf("watching %s: %w", opts.Root, err)
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGTERM)
	defer stop()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)

	defer signal.Stop(interrupts)

	opts.Interrupts = interrupts

	return NewLoop(src, p, opts).Run(sigCtx)
}
