package search

import (
	"image"
	"math"

	"framealign/internal/frames"
	"framealign/internal/overlay"
)

// Candidate is one size/angle/crop combination together with the window of
// translation offsets to test for it. Candidates are comparable, so a map
// keyed by them deduplicates.
type Candidate struct {
	Width  int
	Height int
	Angle  int
	Crop   frames.Crop
	Window image.Rectangle
}

// render is the part of a candidate that requires resampling the overlay.
type render struct {
	Width  int
	Height int
	Angle  int
	Crop   frames.Crop
}

func (c Candidate) render() render {
	return render{Width: c.Width, Height: c.Height, Angle: c.Angle, Crop: c.Crop}
}

// stepGeometry describes one pyramid level.
type stepGeometry struct {
	initial      bool
	coef         float64 // scale of this level relative to full resolution
	coefDiff     float64 // scale of this level relative to the previous one
	srcW, srcH   int     // scaled source size
	overW, overH int     // size of the overlay image candidates are rendered from
	minIntersect int
	maxOverlay   int
}

// generate enumerates the distinct candidates for one step around the
// branches kept by the previous step. On the initial step prev is ignored.
func generate(cfg Config, b bounds, g stepGeometry, prev []overlay.Transform) []Candidate {
	if g.initial {
		prev = []overlay.Transform{{}}
	}
	seen := make(map[Candidate]struct{})
	var out []Candidate
	add := func(c Candidate) {
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}

	for _, best := range prev {
		minWidth := round(math.Sqrt(float64(g.minIntersect) * b.minAspect))
		maxWidth := round(math.Sqrt(float64(g.maxOverlay) * b.maxAspect))
		if !g.initial {
			lo, hi := narrow(best.Width, cfg.Correction, g.coefDiff)
			minWidth, maxWidth = max(minWidth, lo), min(maxWidth, hi)
		}
		minWidth = max(minWidth, 1)

		angleFrom, angleTo := b.angleFrom, b.angleTo
		if !g.initial {
			angleFrom = nextAngle(2, best.Width, best.Height, best.Angle, angleFrom, false)
			angleTo = nextAngle(2, best.Width, best.Height, best.Angle, angleTo, true)
		}

		for width := minWidth; width <= maxWidth; width++ {
			minHeight := round(float64(width) / b.maxAspect)
			maxHeight := round(float64(width) / b.minAspect)
			if !g.initial {
				lo, hi := narrow(best.Height, cfg.Correction, g.coefDiff)
				minHeight, maxHeight = max(minHeight, lo), min(maxHeight, hi)
			}
			minHeight = max(minHeight, 1)

			for height := minHeight; height <= maxHeight; height++ {
				if !areaAllowed(cfg, width, height, g.coef) {
					continue
				}
				var crop frames.Crop
				if cfg.FixedAspectRatio {
					crop = fixedAspectCrop(width, height, b.maxAspect, g.overW, g.overH)
				}

				var last image.Point
				for angle := angleFrom; angle <= angleTo; angle++ {
					rw, rh := frames.RotatedSize(width, height, angle)
					size := image.Pt(rw, rh)
					if size == last {
						continue
					}
					last = size
					a := angle
					if rw == width && rh == height {
						a = 0
					}
					window, ok := searchWindow(cfg, g, best, size)
					if !ok {
						continue
					}
					add(Candidate{Width: width, Height: height, Angle: a, Crop: crop, Window: window})
				}
			}
		}
	}
	return out
}

// narrow bounds a size to the previous best ± the correction radius, both
// rescaled to the current step.
func narrow(prev, correction int, coefDiff float64) (int, int) {
	lo := int(math.Floor(float64(prev-correction) * coefDiff))
	hi := round(float64(prev+correction)*coefDiff) + 1
	return lo, hi
}

// areaAllowed applies the absolute area bounds. At full resolution the test
// is exact; at coarser steps a scaled size passes when its ±0.5 px rounding
// interval can hold an admissible full-resolution area.
func areaAllowed(cfg Config, width, height int, coef float64) bool {
	if coef >= 1 {
		area := width * height
		return area >= cfg.MinArea && (cfg.MaxArea == 0 || area <= cfg.MaxArea)
	}
	c2 := coef * coef
	hi := (float64(width) + 0.5) * (float64(height) + 0.5) / c2
	lo := (float64(width) - 0.5) * (float64(height) - 0.5) / c2
	if hi < float64(cfg.MinArea) {
		return false
	}
	return cfg.MaxArea == 0 || lo <= float64(cfg.MaxArea)
}

// fixedAspectCrop trims the overlay symmetrically so that a width x height
// render keeps the configured aspect ratio. Crop values are in overlay
// pixels of an overW x overH image.
func fixedAspectCrop(width, height int, aspect float64, overW, overH int) frames.Crop {
	cw := math.Max(0, float64(height)*aspect-float64(width)) / 2
	cw *= float64(overW) / float64(width)
	ch := math.Max(0, float64(width)/aspect-float64(height)) / 2
	ch *= float64(overH) / float64(height)
	return frames.Crop{Left: cw, Top: ch, Right: cw, Bottom: ch}
}

// searchWindow returns the offsets to test for an overlay whose rotated
// bounding box is size. The window is inclusive of every offset it holds.
func searchWindow(cfg Config, g stepGeometry, best overlay.Transform, size image.Point) (image.Rectangle, bool) {
	var r image.Rectangle
	if g.initial {
		r = image.Rect(-size.X+1, -size.Y+1, g.srcW, g.srcH)
	} else {
		radius := float64(cfg.Correction) * g.coefDiff
		cx := float64(best.X) * g.coefDiff
		cy := float64(best.Y) * g.coefDiff
		r = image.Rect(
			int(math.Floor(cx-radius)), int(math.Floor(cy-radius)),
			int(math.Ceil(cx+radius))+1, int(math.Ceil(cy+radius))+1,
		)
	}
	if cfg.MinX != nil {
		r.Min.X = max(r.Min.X, int(float64(*cfg.MinX)*g.coef))
	}
	if cfg.MinY != nil {
		r.Min.Y = max(r.Min.Y, int(float64(*cfg.MinY)*g.coef))
	}
	if cfg.MaxX != nil {
		r.Max.X = min(r.Max.X, round(float64(*cfg.MaxX)*g.coef)+1)
	}
	if cfg.MaxY != nil {
		r.Max.Y = min(r.Max.Y, round(float64(*cfg.MaxY)*g.coef)+1)
	}
	if r.Empty() {
		return image.Rectangle{}, false
	}
	return r, true
}

// nextAngle walks from base towards limit and returns the angle at which the
// rotated bounding box has changed n times, or limit when it never does.
func nextAngle(n, width, height, base, limit int, forward bool) int {
	step := 1
	if !forward {
		step = -1
	}
	lw, lh := frames.RotatedSize(width, height, base)
	for angle := base; (forward && angle <= limit) || (!forward && angle >= limit); angle += step {
		w, h := frames.RotatedSize(width, height, angle)
		if w == lw && h == lh {
			continue
		}
		n--
		if n == 0 {
			return angle
		}
		lw, lh = w, h
	}
	return limit
}

func round(v float64) int { return int(math.Round(v)) }
