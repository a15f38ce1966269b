package preflight

import (
	"context"
	"path/filepath"

	"framealign/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// FrameDir names one input sequence to check.
type FrameDir struct {
	Name string
	Path string
}

// RunAll executes the directory and store checks for cfg, then checks every
// frame directory given.
func RunAll(ctx context.Context, cfg *config.Config, dirs ...FrameDir) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Stat directory", filepath.Dir(cfg.Paths.StatFile)),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckStore(ctx, cfg.Paths.StatFile),
	}
	for _, dir := range dirs {
		results = append(results, CheckFrameDir(ctx, dir.Name, dir.Path))
	}
	return results
}

// Failed counts the results that did not pass.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Passed {
			n++
		}
	}
	return n
}
