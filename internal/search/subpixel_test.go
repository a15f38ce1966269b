package search

import (
	"context"
	"testing"

	"framealign/internal/overlay"
)

func TestRefineCandidatesRespectCropBounds(t *testing.T) {
	base := overlay.Transform{X: 10, Y: 10, Width: 50, Height: 40}
	branches := []overlay.Transform{
		base,
		{X: 10, Y: 10, Width: 49, Height: 40, CropLeft: 250, CropRight: 700},
		{X: 10, Y: 10, Width: 50, Height: 39, CropTop: 999, CropBottom: 0},
	}
	for _, step := range []int{500, 250, 125, 1} {
		p := refineParams{
			base: base, step: step, overW: 100, overH: 80,
			minAspect: 0.5, maxAspect: 2, totals: newCropTotals(),
		}
		candidates := refineCandidates(branches, p)
		if len(candidates) == 0 {
			t.Fatalf("step %d: no candidates", step)
		}
		for _, c := range candidates {
			tr := overlay.Transform{Width: c.Width, Height: c.Height}.WithCrop(c.Crop)
			for _, v := range []int{tr.CropLeft, tr.CropTop, tr.CropRight, tr.CropBottom} {
				if v < 0 || v >= overlay.CropUnit {
					t.Fatalf("step %d: crop field %d out of range in %+v", step, v, c)
				}
			}
			if tr.CropLeft+tr.CropRight > overlay.CropUnit || tr.CropTop+tr.CropBottom > overlay.CropUnit {
				t.Fatalf("step %d: crop sum exceeds unit in %+v", step, c)
			}
			if c.Crop.IsZero() {
				t.Fatalf("step %d: no-op crop emitted", step)
			}
			if c.Width < base.Width-1 || c.Width > base.Width || c.Height < base.Height-1 || c.Height > base.Height {
				t.Fatalf("step %d: size %dx%d outside base-1..base", step, c.Width, c.Height)
			}
			if c.Window.Dx() != 2 || c.Window.Dy() != 2 || c.Window.Min.X != 10 || c.Window.Min.Y != 10 {
				t.Fatalf("step %d: unexpected window %v", step, c.Window)
			}
		}
	}
}

func TestRefineCandidatesHonourCropTotals(t *testing.T) {
	base := overlay.Transform{Width: 50, Height: 40}
	p := refineParams{
		base: base, step: 250, overW: 100, overH: 80,
		minAspect: 0.5, maxAspect: 2,
		totals: cropTotals{shrinkWidth: 250, shrinkHeight: 250, fullWidth: 250, fullHeight: 250},
	}
	for _, c := range refineCandidates([]overlay.Transform{base}, p) {
		tr := overlay.Transform{}.WithCrop(c.Crop)
		h, v := tr.CropLeft+tr.CropRight, tr.CropTop+tr.CropBottom
		if c.Width == base.Width && h > 250 {
			t.Fatalf("full width candidate with horizontal crop %d", h)
		}
		if c.Width == base.Width-1 && h < 250 {
			t.Fatalf("shrunk width candidate with horizontal crop %d", h)
		}
		if c.Height == base.Height && v > 250 {
			t.Fatalf("full height candidate with vertical crop %d", v)
		}
		if c.Height == base.Height-1 && v < 250 {
			t.Fatalf("shrunk height candidate with vertical crop %d", v)
		}
	}
}

func TestSearchWithSubpixelKeepsExactMatch(t *testing.T) {
	src, over := squareScene()
	cfg := squareConfig()
	cfg.MinArea, cfg.MaxArea = 0, 900
	cfg.Subpixel = 2
	s := newSearcher(t, src, over, cfg)

	got, err := s.Search(context.Background(), 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got.Diff != 0 {
		t.Fatalf("Diff = %v, want 0 (%v)", got.Diff, got)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("invalid result: %v", err)
	}
}
