package search

import (
	"context"
	"errors"
	"image"
	"testing"

	"framealign/internal/config"
	"framealign/internal/frames"
	"framealign/internal/overlay"

	"github.com/google/go-cmp/cmp"
)

func newResampler(t *testing.T) frames.Resampler {
	t.Helper()
	r, err := frames.NewDrawResampler("bilinear", "bilinear", "bilinear")
	if err != nil {
		t.Fatalf("resampler: %v", err)
	}
	return r
}

func newSearcher(t *testing.T, src, over *frames.Image, configs ...Config) *Searcher {
	t.Helper()
	in := frames.Inputs{
		Source:  frames.Still{Image: src, Count: 1},
		Overlay: frames.Still{Image: over, Count: 1},
	}
	s, err := New(in, newResampler(t), configs, WithWorkers(4))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func squareScene() (*frames.Image, *frames.Image) {
	src := frames.NewImage(100, 100, 1, 8)
	src.FillRect(image.Rect(30, 40, 50, 60), 255)
	return src, frames.Blank(20, 20, 1, 8)
}

func squareConfig() Config {
	cfg := config.DefaultSearch()
	cfg.MinSourceArea = 3
	cfg.MinOverlayArea = 100
	cfg.MinArea = 400
	cfg.MaxArea = 400
	cfg.Branches = 3
	return cfg
}

func TestSearchIdenticalBlackFrames(t *testing.T) {
	cfg := config.DefaultSearch()
	cfg.MinSourceArea = 1
	cfg.MinOverlayArea = 100
	cfg.MinArea = 100
	cfg.MaxArea = 100
	s := newSearcher(t, frames.NewImage(100, 100, 1, 8), frames.NewImage(10, 10, 1, 8), cfg)

	got, err := s.Search(context.Background(), 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got.Diff != 0 {
		t.Fatalf("Diff = %v, want 0", got.Diff)
	}
	if got.Width != 10 || got.Height != 10 {
		t.Fatalf("size = %dx%d, want 10x10", got.Width, got.Height)
	}
	if got.X < 0 || got.Y < 0 || got.X > 90 || got.Y > 90 {
		t.Fatalf("offset (%d,%d) outside the legal window", got.X, got.Y)
	}

	again, err := s.Search(context.Background(), 0)
	if err != nil {
		t.Fatalf("second Search: %v", err)
	}
	if diff := cmp.Diff(got, again); diff != "" {
		t.Fatalf("search is not deterministic (-first +second):\n%s", diff)
	}
}

func TestSearchFindsWhiteSquare(t *testing.T) {
	src, over := squareScene()
	s := newSearcher(t, src, over, squareConfig())

	got, err := s.Search(context.Background(), 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := overlay.Transform{X: 30, Y: 40, Width: 20, Height: 20, Angle: 0, Diff: 0, Frame: 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected transform (-want +got):\n%s", diff)
	}
}

func TestSearchDeterministicAcrossRuns(t *testing.T) {
	src, over := squareScene()
	cfg := squareConfig()
	cfg.MinArea, cfg.MaxArea = 0, 1600
	cfg.MinSourceArea = 2
	var first overlay.Transform
	for i := range 3 {
		s := newSearcher(t, src, over, cfg)
		got, err := s.Search(context.Background(), 0)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if i == 0 {
			first = got
			continue
		}
		if diff := cmp.Diff(first, got); diff != "" {
			t.Fatalf("run %d differs (-first +got):\n%s", i, diff)
		}
	}
}

func TestSearchFallsBackToLastConfig(t *testing.T) {
	src, over := squareScene()
	strict := squareConfig()
	strict.MinArea, strict.MaxArea = 900, 900
	strict.AcceptableDiff = 0
	s := newSearcher(t, src, over, strict, squareConfig())

	got, err := s.Search(context.Background(), 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got.Width != 20 || got.X != 30 || got.Y != 40 || got.Diff != 0 {
		t.Fatalf("expected the second configuration's result, got %v", got)
	}
}

func TestSearchExhausted(t *testing.T) {
	cfg := config.DefaultSearch()
	cfg.MinSampleArea = 1_000_000
	s := newSearcher(t, frames.NewImage(50, 50, 1, 8), frames.NewImage(10, 10, 1, 8), cfg)
	if _, err := s.Search(context.Background(), 0); !errors.Is(err, ErrSearchExhausted) {
		t.Fatalf("expected ErrSearchExhausted, got %v", err)
	}
}

func TestRepeatIsIdempotent(t *testing.T) {
	src, over := squareScene()
	s := newSearcher(t, src, over, squareConfig())
	ctx := context.Background()

	placed := overlay.Transform{X: 28, Y: 41, Width: 20, Height: 20}
	first, err := s.Repeat(ctx, placed, 0)
	if err != nil {
		t.Fatalf("Repeat: %v", err)
	}
	second, err := s.Repeat(ctx, first, 0)
	if err != nil {
		t.Fatalf("Repeat: %v", err)
	}
	if first.Diff != second.Diff || first.Diff <= 0 {
		t.Fatalf("repeat diffs %v and %v, want equal and positive", first.Diff, second.Diff)
	}

	exact, err := s.Repeat(ctx, overlay.Transform{X: 30, Y: 40, Width: 20, Height: 20}, 0)
	if err != nil {
		t.Fatalf("Repeat: %v", err)
	}
	if exact.Diff != 0 {
		t.Fatalf("exact placement diff = %v, want 0", exact.Diff)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultSearch()
	cfg.MinArea, cfg.MaxArea = 500, 100
	in := frames.Inputs{
		Source:  frames.Still{Image: frames.NewImage(10, 10, 1, 8), Count: 1},
		Overlay: frames.Still{Image: frames.NewImage(10, 10, 1, 8), Count: 1},
	}
	if _, err := New(in, newResampler(t), []Config{cfg}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestPruneKeepsBranchesWithinTolerance(t *testing.T) {
	cfg := config.DefaultSearch()
	cfg.Branches = 3
	cfg.BranchMaxDiff = 10
	items := []overlay.Transform{
		{X: 0, Width: 1, Height: 1, Diff: 10},
		{X: 1, Width: 1, Height: 1, Diff: 10.5},
		{X: 2, Width: 1, Height: 1, Diff: 12},
		{X: 3, Width: 1, Height: 1, Diff: 10.1},
	}
	got := prune(items, cfg)
	if len(got) != 2 {
		t.Fatalf("kept %d branches, want 2", len(got))
	}
	for _, br := range got {
		if br.Diff > (1+cfg.BranchMaxDiff/100)*got[0].Diff {
			t.Fatalf("branch %v exceeds tolerance", br)
		}
	}
}

func TestPruneZeroDiff(t *testing.T) {
	cfg := config.DefaultSearch()
	cfg.Branches = 5
	items := []overlay.Transform{
		{X: 0, Width: 1, Height: 1, Diff: 0},
		{X: 1, Width: 1, Height: 1, Diff: 0},
		{X: 2, Width: 1, Height: 1, Diff: 0.5},
	}
	if got := prune(items, cfg); len(got) != 2 {
		t.Fatalf("kept %d branches, want 2", len(got))
	}
}

func TestTightenAspect(t *testing.T) {
	lo, hi := tightenAspect(40, 20)
	if lo != 39.5/20 || hi != 40.5/20 {
		t.Fatalf("landscape bounds = %v..%v", lo, hi)
	}
	lo, hi = tightenAspect(20, 40)
	if lo != 20/40.5 || hi != 20/39.5 {
		t.Fatalf("portrait bounds = %v..%v", lo, hi)
	}
}

func checkerboard(w, h int) *frames.Image {
	img := frames.NewImage(w, h, 1, 8)
	for y := range h {
		for x := range w {
			if (x+y)%2 == 0 {
				img.Set(x, y, 0, 255)
			}
		}
	}
	return img
}

func TestStepCountStopsWhenDetailIsLost(t *testing.T) {
	tests := []struct {
		name          string
		src           *frames.Image
		maxSampleDiff float64
		want          int
	}{
		{name: "flat source keeps the small level", src: frames.NewImage(100, 100, 1, 8), maxSampleDiff: 5, want: 3},
		{name: "checkerboard drops the small level", src: checkerboard(100, 100), maxSampleDiff: 5, want: 2},
		{name: "check disabled", src: checkerboard(100, 100), maxSampleDiff: 255, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultSearch()
			cfg.MaxSampleDiff = tt.maxSampleDiff
			p := newPyramid(newResampler(t), cfg, level{src: tt.src})
			got, err := p.stepCount()
			if err != nil {
				t.Fatalf("stepCount: %v", err)
			}
			if got != tt.want {
				t.Fatalf("stepCount = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSearchAcrossAngleRange(t *testing.T) {
	src, over := squareScene()
	cfg := squareConfig()
	cfg.Angle1, cfg.Angle2 = -2, 2
	s := newSearcher(t, src, over, cfg)

	got, err := s.Search(context.Background(), 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := overlay.Transform{X: 30, Y: 40, Width: 20, Height: 20, Angle: 0, Diff: 0, Frame: 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected transform (-want +got):\n%s", diff)
	}
}

func TestRenderOverlayMasksRotatedCorners(t *testing.T) {
	src, over := squareScene()
	s := newSearcher(t, src, over, squareConfig())
	lv := level{src: src, over: over}

	img, mask := s.renderOverlay(lv, render{Width: 20, Height: 20, Angle: 4500})
	if mask == nil {
		t.Fatal("rotation without an overlay mask must render one")
	}
	w, h := frames.RotatedSize(20, 20, 4500)
	if mask.Width != w || mask.Height != h || img.Width != w || img.Height != h {
		t.Fatalf("rendered %dx%d image and %dx%d mask, want %dx%d", img.Width, img.Height, mask.Width, mask.Height, w, h)
	}
	if got := mask.At(0, 0, 0); got != 0 {
		t.Fatalf("corner mask sample = %d, want 0", got)
	}
	if got := mask.At(w/2, h/2, 0); got != 255 {
		t.Fatalf("center mask sample = %d, want 255", got)
	}

	if _, mask := s.renderOverlay(lv, render{Width: 20, Height: 20}); mask != nil {
		t.Fatal("unrotated render without an overlay mask must not build one")
	}
}

func TestOffsetDiffCoarseSlack(t *testing.T) {
	src := frames.NewImage(44, 44, 1, 8)
	over := frames.NewImage(4, 4, 1, 8)
	tests := []struct {
		name   string
		offset image.Point
		lim    limits
		want   bool
	}{
		{name: "exact floor rejects", offset: image.Pt(10, 10), lim: limits{minIntersect: 19}, want: false},
		{name: "half pixel slack admits", offset: image.Pt(10, 10), lim: limits{minIntersect: 19, slack: 0.5}, want: true},
		{name: "partial overlap still rejected", offset: image.Pt(-1, 10), lim: limits{minIntersect: 19, slack: 0.5}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := offsetDiff(src, nil, over, nil, tt.offset, tt.lim); ok != tt.want {
				t.Fatalf("offsetDiff ok = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestKeepBestCarriesWinningConfig(t *testing.T) {
	loose := config.DefaultSearch()
	loose.Subpixel = 2
	loose.FixedAspectRatio = true
	strict := config.DefaultSearch()

	first := pass{index: 0, cfg: loose, branches: []overlay.Transform{{Diff: 1}}}
	second := pass{index: 1, cfg: strict, branches: []overlay.Transform{{Diff: 2}}}

	got := keepBest(keepBest(pass{branches: []overlay.Transform{overlay.Unknown()}}, first), second)
	if got.index != 0 || got.cfg.Subpixel != 2 || !got.cfg.FixedAspectRatio {
		t.Fatalf("kept pass %d with %+v, want the first pass and its configuration", got.index, got.cfg)
	}

	tie := pass{index: 2, cfg: strict, branches: []overlay.Transform{{Diff: 1}}}
	if got := keepBest(first, tie); got.index != 2 {
		t.Fatalf("tie kept pass %d, want the later pass", got.index)
	}
}
