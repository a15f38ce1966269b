// Package main hosts the framealign CLI entrypoint and command graph.
//
// The Cobra-based command tree loads the configuration once, opens the stat
// store, and hands frame directories to the search and continuity packages.
// Subcommands cover single-pair searches, whole-sequence runs, stat store
// maintenance, join file validation, and configuration scaffolding.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
