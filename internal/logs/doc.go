// Package logs reads the JSON run log written next to the stat store.
//
// Tail streams the file with bounded memory, supports a negative offset for
// "last N lines" reads, and waits for new lines in follow mode. A Filter
// narrows the output to one frame, one run, or continuity decisions only, so
// the history of a single frame can be followed across runs.
package logs
