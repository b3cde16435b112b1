package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/hupe1980/retest/internal/filter"
)

// ErrRootRemoved is reported when the watched root directory disappears.
var ErrRootRemoved = errors.New("watched root was removed")

// Source delivers change notifications. Any value received on Errors is
// fatal for the watch loop.
type Source interface {
	Events() <-chan filter.ChangeEvent
	Errors() <-chan error
	Close() error
}

// FSSource watches a directory tree recursively with fsnotify.
type FSSource struct {
	root     string
	excludes []string
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	events chan filter.ChangeEvent
	errs   chan error
	done   chan struct{}
	once   sync.Once

	// dirs tracks watched directories so removals can be classified after
	// the path is gone. Only touched by the forwarding goroutine once
	// started.
	dirs map[string]bool
}

// NewFSSource starts watching root and every subdirectory whose base name is
// not listed in excludes.
func NewFSSource(root string, excludes []string, logger *slog.Logger) (*FSSource, error) {
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", abs)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	s := &FSSource{
		root:     abs,
		excludes: excludes,
		watcher:  watcher,
		logger:   logger,
		events:   make(chan filter.ChangeEvent, 64),
		errs:     make(chan error, 1),
		done:     make(chan struct{}),
		dirs:     make(map[string]bool),
	}

	if err := s.addRecursive(abs); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	go s.forward()

	return s, nil
}

// Root returns the absolute watched root.
func (s *FSSource) Root() string { return s.root }

// Events implements Source.
func (s *FSSource) Events() <-chan filter.ChangeEvent { return s.events }

// Errors implements Source.
func (s *FSSource) Errors() <-chan error { return s.errs }

// Close stops the underlying watcher. It is safe to call more than once.
func (s *FSSource) Close() error {
	var err error

	s.once.Do(func() {
		close(s.done)
		err = s.watcher.Close()
	})

	return err
}

func (s *FSSource) forward() {
	for {
		select {
		case <-s.done:
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}

			if s.isRoot(event.Name) && (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
				s.fail(fmt.Errorf("%s: %w", s.root, ErrRootRemoved))
				return
			}

			ce := s.translate(event)

			// A new directory is watched too.
			if ce.IsDir && ce.Kind == filter.KindCreated && !filter.SkipDir(filepath.Base(event.Name), s.excludes) {
				if err := s.addRecursive(event.Name); err != nil {
					s.logger.Warn("could not watch new directory",
						slog.String("path", event.Name), slog.String("error", err.Error()))
				}
			}

			// Sends never block so the fsnotify queue keeps draining. A full
			// buffer drops the event.
			select {
			case s.events <- ce:
			default:
				s.logger.Debug("dropping event, consumer busy", slog.String("path", ce.Path))
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}

			if s.fatal(err) {
				s.fail(err)
				return
			}
		}
	}
}

// fatal reports whether err ends the watch. A queue overflow only means
// some notifications were lost, so it is logged and watching continues.
func (s *FSSource) fatal(err error) bool {
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		s.logger.Warn("watcher queue overflowed, some changes were missed",
			slog.String("root", s.root))

		return false
	}

	return true
}

func (s *FSSource) fail(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

func (s *FSSource) isRoot(name string) bool {
	return filepath.Clean(name) == s.root
}

// translate maps an fsnotify event onto a ChangeEvent.
func (s *FSSource) translate(event fsnotify.Event) filter.ChangeEvent {
	ce := filter.ChangeEvent{Path: event.Name, Kind: kindOf(event.Op)}

	switch ce.Kind {
	case filter.KindDeleted:
		ce.IsDir = s.dirs[event.Name]
		delete(s.dirs, event.Name)
	default:
		if info, err := os.Stat(event.Name); err == nil {
			ce.IsDir = info.IsDir()
		}
	}

	return ce
}

func kindOf(op fsnotify.Op) filter.EventKind {
	switch {
	case op.Has(fsnotify.Create):
		return filter.KindCreated
	case op.Has(fsnotify.Write):
		return filter.KindModified
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return filter.KindDeleted
	default:
		return filter.KindOther
	}
}

// addRecursive walks root and adds all non-excluded directories to the
// watcher.
func (s *FSSource) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		if path != root && filter.SkipDir(d.Name(), s.excludes) {
			return filepath.SkipDir
		}

		if err := s.watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}

		s.dirs[path] = true

		return nil
	})
}
