// Package preflight provides readiness checks for the filesystem paths and
// frame sequences framealign depends on.
//
// The CLI "config validate" command runs RunAll and prints one status line
// per Result. Frame directories are checked with CheckFrameDir so a bad
// input is reported before any search starts.
package preflight
