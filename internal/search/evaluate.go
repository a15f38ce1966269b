package search

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"framealign/internal/framediff"
	"framealign/internal/frames"
	"framealign/internal/overlay"
)

// ErrWorkerPanic wraps a panic raised inside a parallel evaluation worker.
var ErrWorkerPanic = errors.New("evaluation worker panicked")

// level holds the images one evaluation compares. Masks may be nil.
type level struct {
	src      *frames.Image
	srcMask  *frames.Image
	over     *frames.Image
	overMask *frames.Image
}

// limits skips offsets whose overlap is too small. Zero values disable them.
type limits struct {
	minIntersect   int
	minOverlayArea float64 // percent of the rendered overlay
	// slack widens each overlap side before the minIntersect test. Coarse
	// steps use half a pixel, the rounding error of a scaled size.
	slack float64
}

func (l limits) intersects(overlap image.Rectangle) bool {
	w := float64(overlap.Dx()) + l.slack
	h := float64(overlap.Dy()) + l.slack
	return w*h >= float64(l.minIntersect)
}

// rendered is one resampled overlay shared by every window of its group.
type rendered struct {
	key     render
	over    *frames.Image
	mask    *frames.Image
	windows []image.Rectangle
}

// windowBest gathers the best offset of one window across its row tasks.
type windowBest struct {
	mu      sync.Mutex
	best    overlay.Transform
	found   bool
	pending atomic.Int32
}

func (w *windowBest) offer(t overlay.Transform) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.found || betterOffset(t, w.best) {
		w.best = t
		w.found = true
	}
}

// betterOffset orders offsets inside one window by Diff, then Y, then X.
func betterOffset(a, b overlay.Transform) bool {
	if a.Diff != b.Diff {
		return a.Diff < b.Diff
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}

// evaluate renders each distinct size/angle/crop once, scans every window of
// every group in parallel and inserts the best offset of each window into
// set.
func (s *Searcher) evaluate(ctx context.Context, lv level, candidates []Candidate, lim limits, set *overlay.BestSet) error {
	groups := s.group(candidates)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, grp := range groups {
		g.Go(func() (err error) {
			defer recoverWorker(&err)
			if err := gctx.Err(); err != nil {
				return err
			}
			grp.over, grp.mask = s.renderOverlay(lv, grp.key)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, grp := range groups {
		for _, window := range grp.windows {
			wb := &windowBest{}
			wb.pending.Store(int32(window.Dy()))
			for y := window.Min.Y; y < window.Max.Y; y++ {
				g.Go(func() (err error) {
					defer recoverWorker(&err)
					if err := gctx.Err(); err != nil {
						return err
					}
					if t, ok := scanRow(lv, grp, y, window.Min.X, window.Max.X, lim); ok && set.Admits(t.Diff) {
						wb.offer(t)
					}
					if wb.pending.Add(-1) == 0 && wb.found {
						set.Insert(wb.best)
					}
					return nil
				})
			}
		}
	}
	return g.Wait()
}

// group collects candidates sharing a render, keeping first-seen order.
func (s *Searcher) group(candidates []Candidate) []*rendered {
	index := make(map[render]*rendered)
	var out []*rendered
	for _, c := range candidates {
		key := c.render()
		grp, ok := index[key]
		if !ok {
			grp = &rendered{key: key}
			index[key] = grp
			out = append(out, grp)
		}
		grp.windows = append(grp.windows, c.Window)
	}
	return out
}

// renderOverlay resamples the overlay and its mask. Rotating without an
// overlay mask renders a blank mask so the corners outside the rotated
// overlay are excluded.
func (s *Searcher) renderOverlay(lv level, key render) (*frames.Image, *frames.Image) {
	over := s.resampler.Render(lv.over, key.Width, key.Height, key.Angle, key.Crop)
	rotated := frames.NormalizeAngle(key.Angle) != 0
	switch {
	case lv.overMask != nil:
		return over, s.resampler.Render(lv.overMask, key.Width, key.Height, key.Angle, frames.Crop{})
	case rotated:
		blank := frames.Blank(lv.over.Width, lv.over.Height, 1, lv.over.Depth)
		return over, s.resampler.Render(blank, key.Width, key.Height, key.Angle, frames.Crop{})
	default:
		return over, nil
	}
}

// scanRow tests offsets x0 <= x < x1 on row y and returns the best one.
func scanRow(lv level, grp *rendered, y, x0, x1 int, lim limits) (overlay.Transform, bool) {
	var (
		best  overlay.Transform
		found bool
	)
	for x := x0; x < x1; x++ {
		diff, ok := offsetDiff(lv.src, lv.srcMask, grp.over, grp.mask, image.Pt(x, y), lim)
		if !ok {
			continue
		}
		t := overlay.Transform{
			X: x, Y: y,
			Width: grp.key.Width, Height: grp.key.Height, Angle: grp.key.Angle,
			Diff: diff,
		}.WithCrop(grp.key.Crop)
		if !found || betterOffset(t, best) {
			best, found = t, true
		}
	}
	return best, found
}

// offsetDiff compares over placed at offset against src. It reports false
// when the overlap is empty or smaller than the limits allow.
func offsetDiff(src, srcMask, over, overMask *frames.Image, offset image.Point, lim limits) (float64, bool) {
	placed := over.Bounds().Add(offset)
	overlap := placed.Intersect(src.Bounds())
	if overlap.Empty() {
		return 0, false
	}
	if !lim.intersects(overlap) {
		return 0, false
	}
	area := overlap.Dx() * overlap.Dy()
	if float64(area)/float64(over.Area()) < lim.minOverlayArea/100 {
		return 0, false
	}
	local := overlap.Sub(offset)
	var srcM, overM framediff.Region
	if srcMask != nil {
		srcM = framediff.Window(srcMask, overlap)
	}
	if overMask != nil {
		overM = framediff.Window(overMask, local)
	}
	return framediff.Difference(framediff.Window(src, overlap), srcM, framediff.Window(over, local), overM), true
}

// single evaluates one placement without area limits. A placement with no
// overlap gets the largest finite Diff.
func (s *Searcher) single(lv level, t overlay.Transform) overlay.Transform {
	over, mask := s.renderOverlay(lv, render{Width: t.Width, Height: t.Height, Angle: t.Angle, Crop: t.Crop()})
	diff, ok := offsetDiff(lv.src, lv.srcMask, over, mask, image.Pt(t.X, t.Y), limits{})
	if !ok {
		diff = math.MaxFloat64
	}
	t.Diff = diff
	return t
}

func recoverWorker(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v\n%s", ErrWorkerPanic, r, debug.Stack())
	}
}
