package search

import (
	"context"
	"image"
	"math"

	"framealign/internal/overlay"
)

// cropTotals bounds the crop sums tried at each size so the refiner does not
// oscillate between a smaller size with a large crop and a larger size with
// a small crop that describe the same effective scale.
type cropTotals struct {
	shrinkWidth  int // best crop sum seen at width-1, caps crops at the full width
	shrinkHeight int // best crop sum seen at height-1, caps crops at the full height
	fullWidth    int // best crop sum seen at the full width, floors crops at width-1
	fullHeight   int // best crop sum seen at the full height, floors crops at height-1
}

func newCropTotals() cropTotals {
	return cropTotals{shrinkWidth: overlay.CropUnit, shrinkHeight: overlay.CropUnit}
}

func (c *cropTotals) observe(best, base overlay.Transform) {
	h := best.CropLeft + best.CropRight
	v := best.CropTop + best.CropBottom
	if best.Width == base.Width-1 && c.shrinkWidth > h {
		c.shrinkWidth = h
	}
	if best.Height == base.Height-1 && c.shrinkHeight > v {
		c.shrinkHeight = v
	}
	if best.Width == base.Width && c.fullWidth < h {
		c.fullWidth = h
	}
	if best.Height == base.Height && c.fullHeight < v {
		c.fullHeight = v
	}
}

// refineParams is what refineCandidates needs besides the branches.
type refineParams struct {
	base       overlay.Transform // best full-resolution branch
	step       int               // crop step in crop units
	overW      int
	overH      int
	minAspect  float64
	maxAspect  float64
	fixedRatio bool
	totals     cropTotals
}

// refine searches fractional crops around the full-resolution branches and
// returns the best transform found, which is branches[0] when no refinement
// improves on it.
func (s *Searcher) refine(ctx context.Context, cfg Config, b bounds, full level, branches []overlay.Transform) (overlay.Transform, error) {
	base := branches[0]
	set := overlay.NewBestSet(cfg.Branches)
	for _, br := range branches {
		set.Insert(br)
	}
	totals := newCropTotals()
	for i := 1; i <= cfg.Subpixel; i++ {
		step := round(math.Pow(2, -float64(i)) * overlay.CropUnit)
		if step == 0 {
			break
		}
		if best, ok := set.Min(); ok {
			totals.observe(best, base)
		}
		candidates := refineCandidates(prune(set.Items(), cfg), refineParams{
			base:       base,
			step:       step,
			overW:      full.over.Width,
			overH:      full.over.Height,
			minAspect:  b.minAspect,
			maxAspect:  b.maxAspect,
			fixedRatio: cfg.FixedAspectRatio,
			totals:     totals,
		})
		if len(candidates) == 0 {
			continue
		}
		if err := s.evaluate(ctx, full, candidates, limits{}, set); err != nil {
			return overlay.Transform{}, err
		}
	}
	best, ok := set.Min()
	if !ok {
		return base, nil
	}
	return best, nil
}

// refineCandidates perturbs each crop edge of every branch by ±step and
// tries the accepted size and one pixel less in each dimension.
func refineCandidates(branches []overlay.Transform, p refineParams) []Candidate {
	seen := make(map[Candidate]struct{})
	var out []Candidate
	window := image.Rect(p.base.X, p.base.Y, p.base.X+2, p.base.Y+2)
	deltas := []int{-p.step, 0, p.step}

	for _, br := range branches {
		for _, dl := range deltas {
			for _, dt := range deltas {
				for _, dr := range deltas {
					for width := p.base.Width - 1; width <= p.base.Width; width++ {
						for height := p.base.Height - 1; height <= p.base.Height; height++ {
							if width < 1 || height < 1 {
								continue
							}
							cl, ct, cr := br.CropLeft+dl, br.CropTop+dt, br.CropRight+dr
							var bottoms []int
							if p.fixedRatio {
								bottoms = []int{fixedBottom(cl, ct, cr, width, height, p)}
							} else {
								bottoms = []int{br.CropBottom - p.step, br.CropBottom, br.CropBottom + p.step}
							}
							for _, cb := range bottoms {
								t := overlay.Transform{
									Width: width, Height: height, Angle: br.Angle,
									CropLeft: cl, CropTop: ct, CropRight: cr, CropBottom: cb,
								}
								if skipRefinement(t, p) {
									continue
								}
								c := Candidate{Width: width, Height: height, Angle: br.Angle, Crop: t.Crop(), Window: window}
								if _, ok := seen[c]; ok {
									continue
								}
								seen[c] = struct{}{}
								out = append(out, c)
							}
						}
					}
				}
			}
		}
	}
	return out
}

// fixedBottom derives the bottom crop that keeps the configured aspect ratio
// for the given horizontal crop and top crop.
func fixedBottom(cl, ct, cr, width, height int, p refineParams) int {
	const unit = float64(overlay.CropUnit)
	overW, overH := float64(p.overW), float64(p.overH)
	orgWidth := overW - float64(cl+cr)/unit
	realWidth := overW / orgWidth * float64(width)
	realHeight := realWidth / p.maxAspect
	orgHeight := overH / (realHeight / float64(height))
	return int((overH - orgHeight - float64(ct)/unit) * unit)
}

func skipRefinement(t overlay.Transform, p refineParams) bool {
	const unit = overlay.CropUnit
	cl, ct, cr, cb := t.CropLeft, t.CropTop, t.CropRight, t.CropBottom
	h, v := cl+cr, ct+cb
	switch {
	case cl < 0 || ct < 0 || cr < 0 || cb < 0:
		return true
	case cl >= unit || ct >= unit || cr >= unit || cb >= unit:
		return true
	case h > unit || v > unit:
		return true
	case cl == 0 && ct == 0 && cr == 0 && cb == 0:
		return true
	case t.Width == p.base.Width && h > p.totals.shrinkWidth:
		return true
	case t.Height == p.base.Height && v > p.totals.shrinkHeight:
		return true
	case t.Width == p.base.Width-1 && h < p.totals.fullWidth:
		return true
	case t.Height == p.base.Height-1 && v < p.totals.fullHeight:
		return true
	}
	if p.fixedRatio {
		return false
	}
	actualW := float64(t.Width) + float64(t.Width)/float64(p.overW)*float64(h)/unit
	actualH := float64(t.Height) + float64(t.Height)/float64(p.overH)*float64(v)/unit
	ar := actualW / actualH
	return ar <= p.minAspect || ar >= p.maxAspect
}
