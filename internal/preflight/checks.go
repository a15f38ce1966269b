package preflight

import (
	"context"
	"errors"
	"fmt"

	"framealign/internal/config"
	"framealign/internal/frames"
	"framealign/internal/statstore"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if err := config.CheckWritable(path); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("error: %v", err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckStore opens the stat store, counts its frames and releases it again.
// A store held by another process fails the check.
func CheckStore(ctx context.Context, path string) Result {
	const name = "Stat store"
	store, err := statstore.OpenSQLite(ctx, path)
	if errors.Is(err, statstore.ErrLocked) {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: in use by another process)", path)}
	}
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("error: %v", err)}
	}
	defer store.Close()

	stored, err := statstore.Frames(ctx, store)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d frames stored)", path, len(stored))}
}

// CheckFrameDir verifies that path holds decodable frames and reports the
// layout of the first one.
func CheckFrameDir(ctx context.Context, name, path string) Result {
	dir, err := frames.OpenDir(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("error: %v", err)}
	}
	first, err := dir.Frame(ctx, 0)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%d frames, %dx%d, %d channel(s), %d-bit", dir.Len(), first.Width, first.Height, first.Channels, first.Depth),
	}
}
