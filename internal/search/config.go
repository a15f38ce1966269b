package search

import (
	"math"

	"framealign/internal/config"
)

// Config bounds one search pass.
type Config = config.Search

// coef returns the scale of pyramid step n; step 1 is full resolution.
func coef(c Config, step int) float64 {
	return math.Pow(c.ScaleBase, float64(1-step))
}

// baseStep returns the step a level is resampled from: roughly one octave
// finer, so each level is at most a 2x reduction of its base.
func baseStep(c Config, step int) int {
	return step - int(math.Round(math.Log(2)/math.Log(c.ScaleBase)))
}

// bounds holds the per-frame limits derived from Config and the clip sizes.
type bounds struct {
	minAspect, maxAspect float64
	angleFrom, angleTo   int // hundredths of a degree
	minSourceArea        float64
	minOverlayArea       float64
}

func resolve(c Config, srcW, srcH, overW, overH int) bounds {
	overAR := float64(overW) / float64(overH)
	srcAR := float64(srcW) / float64(srcH)
	ar1, ar2 := c.AspectRatio1, c.AspectRatio2
	if ar1 <= 0 {
		ar1 = overAR
	}
	if ar2 <= 0 {
		ar2 = overAR
	}
	a1 := math.Mod(c.Angle1, 360)
	a2 := math.Mod(c.Angle2, 360)
	b := bounds{
		minAspect:      min(ar1, ar2),
		maxAspect:      max(ar1, ar2),
		angleFrom:      int(math.Round(min(a1, a2) * 100)),
		angleTo:        int(math.Round(max(a1, a2) * 100)),
		minSourceArea:  c.MinSourceArea,
		minOverlayArea: c.MinOverlayArea,
	}
	def := min(srcAR, overAR) / max(srcAR, overAR) * 100
	if b.minSourceArea <= 0 {
		b.minSourceArea = def
	}
	if b.minOverlayArea <= 0 {
		b.minOverlayArea = def
	}
	return b
}
