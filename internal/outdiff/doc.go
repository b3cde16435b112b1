// Package outdiff highlights what changed between two captures of a test
// command's output.
//
// Two interchangeable [Differ] strategies produce the same [Segment] stream:
//
//   - [LineDiffer] aligns whole lines using go-difflib's sequence matcher.
//   - [CharDiffer] runs a Myers diff over characters with diff-match-patch
//     and then applies semantic cleanup so edits land on readable boundaries.
//
// A [Renderer] turns segments into a string with ANSI colors: insertions in
// green, removals in red, unchanged text verbatim.
package outdiff
