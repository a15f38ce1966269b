package continuity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"framealign/internal/config"
	"framealign/internal/frames"
	"framealign/internal/overlay"
	"framealign/internal/statstore"
)

type fakeSearcher struct {
	mu     sync.Mutex
	frames int
	// own is the full-search result per frame; missing frames get base.
	own  map[int]overlay.Transform
	base overlay.Transform
	// repeatDiff returns the Diff of t reapplied to frame n.
	repeatDiff func(t overlay.Transform, n int) float64

	searchCalls map[int]int
	repeatCalls int
}

func newFake(count int, base overlay.Transform) *fakeSearcher {
	return &fakeSearcher{
		frames:      count,
		base:        base,
		own:         make(map[int]overlay.Transform),
		searchCalls: make(map[int]int),
		repeatDiff:  func(t overlay.Transform, _ int) float64 { return t.Diff },
	}
}

func (f *fakeSearcher) Search(_ context.Context, n int) (overlay.Transform, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls[n]++
	t, ok := f.own[n]
	if !ok {
		t = f.base
	}
	t.Frame = n
	return t, nil
}

func (f *fakeSearcher) Repeat(_ context.Context, t overlay.Transform, n int) (overlay.Transform, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repeatCalls++
	t.Diff = f.repeatDiff(t, n)
	t.Frame = n
	return t, nil
}

func (f *fakeSearcher) OverlaySize(context.Context) (image.Point, error) {
	return image.Pt(100, 100), nil
}

func (f *fakeSearcher) Len() int { return f.frames }

func (f *fakeSearcher) searches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, c := range f.searchCalls {
		total += c
	}
	return total
}

func placement(x, y int, diff float64) overlay.Transform {
	return overlay.Transform{X: x, Y: y, Width: 100, Height: 100, Diff: diff}
}

func engineConfig(mode string) config.Engine {
	cfg := config.Default().Engine
	cfg.Mode = mode
	return cfg
}

func newEngine(t *testing.T, f *fakeSearcher, store statstore.Store, cfg config.Engine) *Engine {
	t.Helper()
	e, err := New(context.Background(), f, store, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func put(t *testing.T, store statstore.Store, tr overlay.Transform) {
	t.Helper()
	if err := store.Put(context.Background(), tr); err != nil {
		t.Fatalf("Put: %v", err)
	}
}

func stored(t *testing.T, store statstore.Store, frame int) *overlay.Transform {
	t.Helper()
	got, err := store.Get(context.Background(), frame)
	if err != nil {
		t.Fatalf("Get(%d): %v", frame, err)
	}
	return got
}

func TestUpdateModeKeepsUnchangedEntry(t *testing.T) {
	store := statstore.NewMemory()
	entry := placement(4, 5, 5.0)
	entry.Frame = 2
	put(t, store, entry)

	f := newFake(10, placement(0, 0, 0))
	e := newEngine(t, f, store, engineConfig(config.ModeUpdate))

	got, err := e.Transform(context.Background(), 2)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if diff := cmp.Diff(entry, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if e.Stats().Writes != 0 {
		t.Fatalf("expected no store writes, got %d", e.Stats().Writes)
	}
	if f.searches() != 0 || f.repeatCalls != 1 {
		t.Fatalf("searches=%d repeats=%d, want 0 and 1", f.searches(), f.repeatCalls)
	}
}

func TestUpdateModeRewritesChangedEntry(t *testing.T) {
	store := statstore.NewMemory()
	entry := placement(4, 5, 5.0)
	entry.Frame = 2
	put(t, store, entry)

	f := newFake(10, placement(0, 0, 0))
	f.repeatDiff = func(overlay.Transform, int) float64 { return 3.5 }
	e := newEngine(t, f, store, engineConfig(config.ModeUpdate))

	got, err := e.Transform(context.Background(), 2)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if got.Diff != 3.5 || !got.Equal(entry) {
		t.Fatalf("got %v, want repeated entry with diff 3.5", got)
	}
	if s := stored(t, store, 2); s == nil || s.Diff != 3.5 {
		t.Fatalf("stored = %v, want diff 3.5", s)
	}
}

func TestReadOnlyReturnsSentinelWithoutSearch(t *testing.T) {
	store := statstore.NewMemory()
	f := newFake(10, placement(0, 0, 0))
	e := newEngine(t, f, store, engineConfig(config.ModeReadOnly))

	got, err := e.Transform(context.Background(), 7)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	want := overlay.Transform{Frame: 7, Width: 100, Height: 100, Diff: -1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if f.searches() != 0 || f.repeatCalls != 0 {
		t.Fatal("read-only mode must not search")
	}

	entry := placement(1, 1, 2)
	entry.Frame = 3
	put(t, store, entry)
	got, err = e.Transform(context.Background(), 3)
	if err != nil || !got.Equal(entry) {
		t.Fatalf("Transform(3) = %v, %v; want stored entry", got, err)
	}
}

func TestEraseModeClearsEntry(t *testing.T) {
	store := statstore.NewMemory()
	entry := placement(1, 1, 2)
	entry.Frame = 4
	put(t, store, entry)

	f := newFake(10, placement(0, 0, 0))
	e := newEngine(t, f, store, engineConfig(config.ModeErase))
	got, err := e.Transform(context.Background(), 4)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if !got.IsSentinel() || got.Frame != 4 {
		t.Fatalf("got %v, want sentinel for frame 4", got)
	}
	if s := stored(t, store, 4); s != nil {
		t.Fatalf("entry not erased: %v", s)
	}
	if f.searches() != 0 {
		t.Fatal("erase mode must not search")
	}
}

func TestDefaultModeReturnsStoredEntry(t *testing.T) {
	store := statstore.NewMemory()
	entry := placement(9, 9, 0.25)
	entry.Frame = 1
	put(t, store, entry)

	f := newFake(10, placement(0, 0, 0))
	e := newEngine(t, f, store, engineConfig(config.ModeDefault))
	got, err := e.Transform(context.Background(), 1)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if diff := cmp.Diff(entry, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if f.searches() != 0 || f.repeatCalls != 0 {
		t.Fatal("stored entry should be returned without work")
	}
}

func TestRecomputeModeIgnoresStoredEntry(t *testing.T) {
	store := statstore.NewMemory()
	entry := placement(9, 9, 0.25)
	entry.Frame = 1
	put(t, store, entry)

	f := newFake(10, placement(2, 3, 0.5))
	cfg := engineConfig(config.ModeRecompute)
	cfg.BackwardFrames = 0
	cfg.Stabilize = false
	e := newEngine(t, f, store, cfg)
	got, err := e.Transform(context.Background(), 1)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if got.X != 2 || got.Y != 3 || f.searchCalls[1] != 1 {
		t.Fatalf("got %v with %d searches, want fresh search result", got, f.searchCalls[1])
	}
	if s := stored(t, store, 1); s == nil || s.X != 2 {
		t.Fatalf("stored = %v, want fresh result", s)
	}
}

func TestSimpleSearchPersists(t *testing.T) {
	store := statstore.NewMemory()
	f := newFake(10, placement(7, 8, 1))
	cfg := engineConfig(config.ModeDefault)
	cfg.BackwardFrames = 0
	cfg.Stabilize = false
	e := newEngine(t, f, store, cfg)

	got, err := e.Transform(context.Background(), 5)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	want := placement(7, 8, 1)
	want.Frame = 5
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if s := stored(t, store, 5); s == nil || *s != want {
		t.Fatalf("stored = %v, want %v", s, want)
	}
}

// seedPrevious stores frames [0,n) with the same geometry.
func seedPrevious(t *testing.T, store statstore.Store, tr overlay.Transform, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		tr.Frame = i
		put(t, store, tr)
	}
}

func TestRepeatPreviousFrames(t *testing.T) {
	store := statstore.NewMemory()
	shared := placement(10, 20, 1)
	seedPrevious(t, store, shared, 3)

	f := newFake(10, placement(50, 50, 0))
	e := newEngine(t, f, store, engineConfig(config.ModeDefault))

	got, err := e.Transform(context.Background(), 3)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	want := shared
	want.Frame = 3
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if f.searches() != 0 {
		t.Fatalf("repeat path ran %d searches", f.searches())
	}
	if s := stored(t, store, 4); s != nil {
		t.Fatalf("lookahead must not write frame 4: %v", s)
	}
}

func TestRepeatPanAndScanFallsBackToSearch(t *testing.T) {
	store := statstore.NewMemory()
	shared := placement(10, 20, 1)
	seedPrevious(t, store, shared, 3)

	f := newFake(10, placement(10, 20, 1))
	f.own[3] = placement(40, 40, 0.5)
	f.own[4] = placement(11, 20, 0.5)
	f.repeatDiff = func(tr overlay.Transform, n int) float64 {
		if n == 4 {
			return 50
		}
		return tr.Diff
	}
	cfg := engineConfig(config.ModeDefault)
	cfg.MaxDeviation = 5
	e := newEngine(t, f, store, cfg)

	got, err := e.Transform(context.Background(), 3)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if got.X != 40 || got.Y != 40 {
		t.Fatalf("got %v, want fresh search result for frame 3", got)
	}
	if f.searchCalls[4] != 1 || f.searchCalls[3] != 1 {
		t.Fatalf("search calls = %v", f.searchCalls)
	}
}

func TestRepeatSceneChangeAcceptsRepeat(t *testing.T) {
	store := statstore.NewMemory()
	shared := placement(10, 20, 1)
	seedPrevious(t, store, shared, 3)

	f := newFake(10, placement(10, 20, 1))
	f.own[4] = placement(-60, 70, 0.5)
	f.repeatDiff = func(tr overlay.Transform, n int) float64 {
		if n == 4 {
			return 50
		}
		return tr.Diff
	}
	e := newEngine(t, f, store, engineConfig(config.ModeDefault))

	got, err := e.Transform(context.Background(), 3)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if !got.Equal(shared) || got.Frame != 3 {
		t.Fatalf("got %v, want repeated previous transform", got)
	}
	if f.searchCalls[3] != 0 {
		t.Fatal("scene change must not search the current frame")
	}
}

func TestStabilizePicksMajority(t *testing.T) {
	store := statstore.NewMemory()
	a := placement(10, 10, 1)
	b := placement(30, 10, 0.5)
	f := newFake(6, a)
	f.own[1] = b
	cfg := engineConfig(config.ModeDefault)
	cfg.ForwardFrames = 0
	e := newEngine(t, f, store, cfg)

	got, err := e.Transform(context.Background(), 0)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if !got.Equal(a) || got.Frame != 0 {
		t.Fatalf("got %v, want majority transform a", got)
	}
	for frame := 0; frame < 3; frame++ {
		s := stored(t, store, frame)
		if s == nil || !s.Equal(a) || s.Frame != frame {
			t.Fatalf("frame %d stored %v, want a", frame, s)
		}
	}
	if s := stored(t, store, 3); s != nil {
		t.Fatalf("frame 3 outside the window was written: %v", s)
	}
}

func TestStabilizeKeepsExistingWindowEntries(t *testing.T) {
	store := statstore.NewMemory()
	a := placement(10, 10, 1)
	f := newFake(6, a)
	cfg := engineConfig(config.ModeDefault)
	cfg.ForwardFrames = 0
	e := newEngine(t, f, store, cfg)

	if _, err := e.Transform(context.Background(), 0); err != nil {
		t.Fatalf("Transform: %v", err)
	}
	writes := e.Stats().Writes
	if writes != 3 {
		t.Fatalf("writes = %d, want 3", writes)
	}
	// Frame 1 is now stored and is returned as-is.
	got, err := e.Transform(context.Background(), 1)
	if err != nil || !got.Equal(a) {
		t.Fatalf("Transform(1) = %v, %v", got, err)
	}
	if e.Stats().Writes != writes {
		t.Fatal("stored frame rewritten")
	}
}

func TestStabilizeWindowEdges(t *testing.T) {
	tests := []struct {
		name      string
		frames    int
		backward  int
		wantWrite []int
	}{
		{"zero backward window", 5, 0, []int{0}},
		{"window equals frame count", 3, 3, []int{0, 1, 2}},
		{"window exceeds frame count", 2, 5, []int{0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := statstore.NewMemory()
			f := newFake(tt.frames, placement(1, 2, 0.5))
			cfg := engineConfig(config.ModeDefault)
			cfg.BackwardFrames = tt.backward
			cfg.ForwardFrames = 0
			e := newEngine(t, f, store, cfg)

			if _, err := e.Transform(context.Background(), 0); err != nil {
				t.Fatalf("Transform: %v", err)
			}
			got, err := statstore.Frames(context.Background(), store)
			if err != nil {
				t.Fatalf("Frames: %v", err)
			}
			if diff := cmp.Diff(tt.wantWrite, got); diff != "" {
				t.Fatalf("written frames mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStabilizeRejectsHighDiff(t *testing.T) {
	store := statstore.NewMemory()
	f := newFake(5, placement(1, 2, 9))
	e := newEngine(t, f, store, engineConfig(config.ModeDefault))

	got, err := e.Transform(context.Background(), 0)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if got.Diff != 9 {
		t.Fatalf("got %v, want fresh search result", got)
	}
	written, _ := statstore.Frames(context.Background(), store)
	if diff := cmp.Diff([]int{0}, written); diff != "" {
		t.Fatalf("only the requested frame should be written (-want +got):\n%s", diff)
	}
	if f.searchCalls[0] != 1 {
		t.Fatalf("search for frame 0 ran %d times, want 1 (cached)", f.searchCalls[0])
	}
}

func TestStabilizeRejectionLogsWarning(t *testing.T) {
	store := statstore.NewMemory()
	a := placement(10, 10, 1)
	f := newFake(5, a)
	f.repeatDiff = func(tr overlay.Transform, n int) float64 {
		if n == 1 {
			return 8
		}
		return tr.Diff
	}
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	e, err := New(context.Background(), f, store, engineConfig(config.ModeDefault), WithLogger(logger))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := e.Transform(context.Background(), 0)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if !got.Equal(a) {
		t.Fatalf("got %v, want the frame's own search", got)
	}
	var warning map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		if record["level"] == "WARN" {
			warning = record
		}
	}
	if warning == nil {
		t.Fatalf("expected a warning, log was:\n%s", buf.String())
	}
	if warning["event_type"] != "stabilize_reject" || warning["decision_reason"] != "frame 1 breaks the window" {
		t.Fatalf("unexpected warning %v", warning)
	}
	if warning["frame"] != float64(0) {
		t.Fatalf("warning frame = %v, want 0", warning["frame"])
	}
}

func TestSearchComputedOnceUnderConcurrency(t *testing.T) {
	f := newFake(4, placement(1, 1, 1))
	e := newEngine(t, f, statstore.NewMemory(), engineConfig(config.ModeDefault))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.search(context.Background(), 2); err != nil {
				t.Errorf("search: %v", err)
			}
			if _, err := e.repeat(context.Background(), placement(3, 3, 1), 1); err != nil {
				t.Errorf("repeat: %v", err)
			}
		}()
	}
	wg.Wait()
	if f.searchCalls[2] != 1 {
		t.Fatalf("search ran %d times, want 1", f.searchCalls[2])
	}
	if f.repeatCalls != 1 {
		t.Fatalf("repeat ran %d times, want 1", f.repeatCalls)
	}
}

func TestConcurrentFramesResolve(t *testing.T) {
	store := statstore.NewMemory()
	f := newFake(8, placement(1, 1, 1))
	cfg := engineConfig(config.ModeDefault)
	cfg.BackwardFrames = 0
	cfg.Stabilize = false
	e := newEngine(t, f, store, cfg)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				if _, err := e.Transform(context.Background(), n); err != nil {
					t.Errorf("Transform(%d): %v", n, err)
				}
			}(i)
		}
	}
	wg.Wait()
	if f.searches() != 8 {
		t.Fatalf("searches = %d, want one per frame", f.searches())
	}
}

func TestTransformRejectsOutOfRange(t *testing.T) {
	e := newEngine(t, newFake(3, placement(0, 0, 0)), statstore.NewMemory(), engineConfig(config.ModeDefault))
	if _, err := e.Transform(context.Background(), 3); !errors.Is(err, frames.ErrFrameRange) {
		t.Fatalf("error = %v, want ErrFrameRange", err)
	}
}

func TestMajorityTieBreaksByDiff(t *testing.T) {
	a := placement(1, 1, 2)
	b := placement(2, 2, 1)
	got := majority([]overlay.Transform{a, b})
	if !got.Equal(b) {
		t.Fatalf("majority = %v, want lower diff b", got)
	}
	got = majority([]overlay.Transform{a, b, a})
	if !got.Equal(a) {
		t.Fatalf("majority = %v, want most frequent a", got)
	}
}

func TestCheckDev(t *testing.T) {
	e := &Engine{cfg: config.Engine{MaxDiffIncrease: 1}}
	ok := e.checkDev([]overlay.Transform{placement(0, 0, 1), placement(0, 0, 1)}, placement(0, 0, 2))
	if !ok {
		t.Fatal("increase of 0.67 over the mean should pass")
	}
	ok = e.checkDev([]overlay.Transform{placement(0, 0, 0), placement(0, 0, 0)}, placement(0, 0, 3))
	if ok {
		t.Fatal("increase of 2 over the mean should fail")
	}
}
