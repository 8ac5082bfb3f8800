// Package logs reads the daemon's on-disk log when its HTTP API is not
// reachable.
//
// Last returns the trailing lines of the current log and Follow polls for
// appended lines, re-reading from the start when the file is rotated. Both
// back `emotrack logs --file`.
package logs
