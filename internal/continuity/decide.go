package continuity

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"

	"framealign/internal/logging"
	"framealign/internal/overlay"
)

// outcome is the edge a decision step leaves by.
type outcome int

const (
	// next continues with the following step of the tree.
	next outcome = iota
	// done returns the step's transform.
	done
	// fresh jumps straight to a simple fresh search.
	fresh
)

type step struct {
	outcome outcome
	result  overlay.Transform
	reason  string
	// rejected marks a stabilization window that failed validation.
	rejected bool
}

func proceed(reason string) step { return step{outcome: next, reason: reason} }

func fallback(reason string) step { return step{outcome: fresh, reason: reason} }

func reject(reason string) step { return step{outcome: fresh, reason: reason, rejected: true} }

func accept(t overlay.Transform, reason string) step {
	return step{outcome: done, result: t, reason: reason}
}

// resolve walks repeat, stabilize and fresh search for a frame that has no
// usable stored entry.
func (e *Engine) resolve(ctx context.Context, n int, logger *slog.Logger) (overlay.Transform, error) {
	prev, err := e.previous(ctx, n)
	if err != nil {
		return overlay.Transform{}, err
	}

	s, err := e.repeatPrevious(ctx, n, prev)
	if err != nil {
		return overlay.Transform{}, err
	}
	if s.outcome == next && e.cfg.Stabilize {
		e.decide(logger, "stabilize", s.reason)
		s, err = e.stabilize(ctx, n, prev)
		if err != nil {
			return overlay.Transform{}, err
		}
		if s.rejected {
			logging.WarnWithContext(logger, "stabilization window rejected", "stabilize_reject",
				logging.String("decision_reason", s.reason),
				logging.String(logging.FieldImpact, "frame falls back to its own search"),
				logging.String(logging.FieldErrorHint, "raise max_diff_increase or max_deviation if the overlay is static"),
			)
		}
	}
	if s.outcome == done {
		e.decide(logger, "accepted", s.reason, logging.String("transform", s.result.String()))
		return s.result, nil
	}

	e.decide(logger, "search", s.reason)
	t, err := e.search(ctx, n)
	if err != nil {
		return overlay.Transform{}, err
	}
	if err := e.put(ctx, t); err != nil {
		return overlay.Transform{}, err
	}
	return t, nil
}

// previous returns the stored frames directly before n that share the
// geometry of frame n-1 and stay within MaxDiff, nearest first, at most
// BackwardFrames of them.
func (e *Engine) previous(ctx context.Context, n int) ([]overlay.Transform, error) {
	var out []overlay.Transform
	for m := n - 1; m >= 0 && m >= n-e.cfg.BackwardFrames; m-- {
		t, err := e.store.Get(ctx, m)
		if err != nil {
			return nil, err
		}
		if t == nil || t.Diff > e.cfg.MaxDiff || t.IsSentinel() {
			break
		}
		if len(out) > 0 && !t.Equal(out[0]) {
			break
		}
		out = append(out, *t)
	}
	return out, nil
}

// repeatPrevious reapplies the transform shared by the full backward window
// to frame n and checks that it holds over the forward window.
func (e *Engine) repeatPrevious(ctx context.Context, n int, prev []overlay.Transform) (step, error) {
	if e.cfg.BackwardFrames == 0 {
		return proceed("backward window disabled"), nil
	}
	if len(prev) < e.cfg.BackwardFrames {
		return proceed(fmt.Sprintf("%d of %d previous frames consistent", len(prev), e.cfg.BackwardFrames)), nil
	}

	info, err := e.repeat(ctx, prev[0], n)
	if err != nil {
		return step{}, err
	}
	if info.Diff > e.cfg.MaxDiff || !e.checkDev(prev, info) {
		return proceed(fmt.Sprintf("repeated diff %.3f not acceptable", info.Diff)), nil
	}

	for m := n + 1; m <= n+e.cfg.ForwardFrames && m < e.frameCount; m++ {
		stored, err := e.store.Get(ctx, m)
		if err != nil {
			return step{}, err
		}
		if stored != nil {
			if stored.Equal(info) {
				if stored.Diff <= e.cfg.MaxDiff && e.checkDev(prev, *stored) {
					continue
				}
				return fallback(fmt.Sprintf("stored frame %d diff %.3f not acceptable", m, stored.Diff)), nil
			}
			if e.nearlyEqual(*stored, info) {
				return fallback(fmt.Sprintf("stored frame %d nearly equal: pan and scan", m)), nil
			}
			break
		}
		repeated, err := e.repeat(ctx, info, m)
		if err != nil {
			return step{}, err
		}
		if repeated.Diff <= e.cfg.MaxDiff && e.checkDev(prev, repeated) {
			continue
		}
		own, err := e.search(ctx, m)
		if err != nil {
			return step{}, err
		}
		if e.nearlyEqual(own, info) {
			return fallback(fmt.Sprintf("frame %d nearly equal: pan and scan", m)), nil
		}
		break
	}

	if err := e.put(ctx, info); err != nil {
		return step{}, err
	}
	return accept(info, "repeated previous frames"), nil
}

// stabilize searches frame n and extends its transform across the frames
// still missing from the backward window, then checks the forward window.
// The validated window is committed in one pass.
func (e *Engine) stabilize(ctx context.Context, n int, prev []overlay.Transform) (step, error) {
	own, err := e.search(ctx, n)
	if err != nil {
		return step{}, err
	}
	if own.Diff > e.cfg.MaxDiff {
		return fallback(fmt.Sprintf("own diff %.3f not acceptable", own.Diff)), nil
	}

	var consistent []overlay.Transform
	if len(prev) > 0 && prev[0].Equal(own) {
		consistent = prev
	}
	end := min(n+max(1, e.cfg.BackwardFrames-len(consistent)), e.frameCount)

	probes := []overlay.Transform{own}
	window := []overlay.Transform{own}
	for m := n + 1; m < end; m++ {
		stored, err := e.store.Get(ctx, m)
		if err != nil {
			return step{}, err
		}
		if stored != nil {
			return fallback(fmt.Sprintf("frame %d inside the window is already stored", m)), nil
		}
		probe, err := e.search(ctx, m)
		if err != nil {
			return step{}, err
		}
		repeated, err := e.repeat(ctx, own, m)
		if err != nil {
			return step{}, err
		}
		probes = append(probes, probe)
		window = append(window, repeated)
		if repeated.Diff > e.cfg.MaxDiff || !e.checkDev(consistent, probes...) {
			return reject(fmt.Sprintf("frame %d breaks the window", m)), nil
		}
	}

	info := own
	if len(consistent) == 0 && len(probes) > 1 {
		info = majority(probes)
		window = window[:0]
		for m := n; m < end; m++ {
			repeated, err := e.repeat(ctx, info, m)
			if err != nil {
				return step{}, err
			}
			window = append(window, repeated)
			if repeated.Diff > e.cfg.MaxDiff || !e.checkDev(consistent, window...) {
				return reject(fmt.Sprintf("majority transform fails at frame %d", m)), nil
			}
		}
	}

	sample := append(append([]overlay.Transform(nil), consistent...), window...)
	for m := end; m < end+e.cfg.ForwardFrames && m < e.frameCount; m++ {
		stored, err := e.store.Get(ctx, m)
		if err != nil {
			return step{}, err
		}
		if stored != nil {
			if stored.Equal(info) {
				sample = append(sample, *stored)
				if stored.Diff <= e.cfg.MaxDiff && e.checkDev(sample) {
					continue
				}
				return fallback(fmt.Sprintf("stored frame %d diff %.3f not acceptable", m, stored.Diff)), nil
			}
			if e.nearlyEqual(*stored, info) {
				return fallback(fmt.Sprintf("stored frame %d nearly equal: pan and scan", m)), nil
			}
			break
		}
		repeated, err := e.repeat(ctx, info, m)
		if err != nil {
			return step{}, err
		}
		sample = append(sample, repeated)
		if repeated.Diff <= e.cfg.MaxDiff && e.checkDev(sample) {
			continue
		}
		probe, err := e.search(ctx, m)
		if err != nil {
			return step{}, err
		}
		if e.nearlyEqual(probe, info) {
			return fallback(fmt.Sprintf("frame %d nearly equal: pan and scan", m)), nil
		}
		break
	}

	if err := e.put(ctx, window[0]); err != nil {
		return step{}, err
	}
	for _, t := range window[1:] {
		if err := e.putIfAbsent(ctx, t); err != nil {
			return step{}, err
		}
	}
	return accept(window[0], fmt.Sprintf("stabilized across %d frames", len(window))), nil
}

// checkDev reports whether no Diff in the combined sample exceeds the sample
// mean by more than MaxDiffIncrease.
func (e *Engine) checkDev(base []overlay.Transform, extra ...overlay.Transform) bool {
	diffs := make([]float64, 0, len(base)+len(extra))
	for _, t := range base {
		diffs = append(diffs, t.Diff)
	}
	for _, t := range extra {
		diffs = append(diffs, t.Diff)
	}
	if len(diffs) == 0 {
		return true
	}
	mean := stat.Mean(diffs, nil)
	for _, d := range diffs {
		if d-mean > e.cfg.MaxDiffIncrease {
			return false
		}
	}
	return true
}

// nearlyEqual compares placements with MaxDeviation read as a percentage of
// the overlay area.
func (e *Engine) nearlyEqual(a, b overlay.Transform) bool {
	return a.NearlyEqual(b, e.overlaySize, e.cfg.MaxDeviation/100)
}

// majority returns the most frequent geometry among probes, ties going to
// the lowest Diff and then to the total order of overlay.Compare.
func majority(probes []overlay.Transform) overlay.Transform {
	type tally struct {
		t     overlay.Transform
		count int
	}
	byKey := make(map[overlay.Key]*tally, len(probes))
	var order []*tally
	for _, p := range probes {
		if c, ok := byKey[p.Key()]; ok {
			c.count++
			if overlay.Less(p, c.t) {
				c.t = p
			}
			continue
		}
		c := &tally{t: p, count: 1}
		byKey[p.Key()] = c
		order = append(order, c)
	}
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].count != order[j].count {
			return order[i].count > order[j].count
		}
		return overlay.Less(order[i].t, order[j].t)
	})
	return order[0].t
}
