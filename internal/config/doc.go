// Package config loads, normalizes, and validates framealign configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours the FRAMEALIGN_STAT_FILE environment fallback. The
// Config type gathers the engine thresholds, resampling kernels and the
// ordered list of search passes so the CLI resolves every knob in one place.
//
// Search passes may also live in a separate list file (TOML or YAML) loaded
// with LoadSearchList.
package config
