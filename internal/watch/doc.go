// Package watch drives retest's change-triggered loop. It subscribes to
// filesystem notifications under a root directory, filters and debounces
// them, and runs the build-and-test pipeline one invocation at a time.
//
// A single interrupt (Ctrl+C) forces a rebuild and arms a short window; a
// second interrupt inside that window stops the watcher.
package watch
