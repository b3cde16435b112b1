// Package filter decides which filesystem notifications are relevant to
// retest's build-and-test loop.
//
// A [ChangeEvent] passes through two gates: the event-kind policy of a
// [PathFilter] (which kinds are allowed to reach suffix matching at all), and
// [Matches], the pure suffix test. Directory names excluded from recursive
// watching are checked with [SkipDir].
package filter
