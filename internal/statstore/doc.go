// Package statstore persists the solved transform of every frame.
//
// Two implementations satisfy Store: SQLite, a file-backed store that holds
// an exclusive lock on "<path>.lock" for its lifetime, and Memory, used by
// tests and by read-only runs without a stat file. Export and Import move
// records through a whitespace-separated text format, one frame per line.
package statstore
