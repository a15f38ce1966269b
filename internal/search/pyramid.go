package search

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"runtime"

	"framealign/internal/framediff"
	"framealign/internal/frames"
	"framealign/internal/logging"
	"framealign/internal/overlay"
)

// ErrSearchExhausted is returned when a configuration admits no candidate.
var ErrSearchExhausted = errors.New("search exhausted without a candidate")

// Searcher aligns overlay frames onto source frames.
type Searcher struct {
	inputs    frames.Inputs
	resampler frames.Resampler
	configs   []Config
	workers   int
	logger    *slog.Logger
}

// Option customizes a Searcher.
type Option func(*Searcher)

// WithWorkers bounds the evaluation pool. Non-positive values use GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(s *Searcher) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLogger sets the logger used for per-step diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) {
		if logger != nil {
			s.logger = logging.NewComponentLogger(logger, "search")
		}
	}
}

// New validates the configurations and returns a Searcher over inputs.
func New(inputs frames.Inputs, resampler frames.Resampler, configs []Config, opts ...Option) (*Searcher, error) {
	if inputs.Source == nil || inputs.Overlay == nil {
		return nil, errors.New("search: source and overlay clips are required")
	}
	if resampler == nil {
		return nil, errors.New("search: resampler is required")
	}
	if len(configs) == 0 {
		return nil, errors.New("search: at least one configuration is required")
	}
	for i, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("search: configuration %d: %w", i, err)
		}
	}
	s := &Searcher{
		inputs:    inputs,
		resampler: resampler,
		configs:   append([]Config(nil), configs...),
		workers:   runtime.GOMAXPROCS(0),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// OverlaySize returns the size of the overlay clip's first frame.
func (s *Searcher) OverlaySize(ctx context.Context) (image.Point, error) {
	over, err := s.inputs.Overlay.Frame(ctx, 0)
	if err != nil {
		return image.Point{}, err
	}
	return image.Pt(over.Width, over.Height), nil
}

// Len returns the number of frames every input clip can serve.
func (s *Searcher) Len() int { return s.inputs.Len() }

// Search runs the configurations in order for frame n and returns the
// refined transform of the first one that reaches its acceptable difference,
// or the best found when none does.
func (s *Searcher) Search(ctx context.Context, n int) (overlay.Transform, error) {
	full, err := s.load(ctx, n)
	if err != nil {
		return overlay.Transform{}, err
	}
	logger := s.logger.With(logging.Int(logging.FieldFrame, n))

	best := pass{branches: []overlay.Transform{overlay.Unknown()}}
	for i, cfg := range s.configs {
		b := resolve(cfg, full.src.Width, full.src.Height, full.over.Width, full.over.Height)
		branches, err := s.pyramid(ctx, cfg, b, newPyramid(s.resampler, cfg, full), logger)
		if err != nil {
			return overlay.Transform{}, fmt.Errorf("frame %d configuration %d: %w", n, i, err)
		}
		best = keepBest(best, pass{index: i, cfg: cfg, bounds: b, branches: branches})
		res := best.branches[0]
		if res.Diff > cfg.AcceptableDiff && i < len(s.configs)-1 {
			logging.WarnWithContext(logger, "configuration not accepted", "search_pass_rejected",
				logging.Int("config", i),
				logging.Float64("diff", res.Diff),
				logging.Float64("acceptable_diff", cfg.AcceptableDiff),
				logging.String(logging.FieldImpact, "next search pass runs"),
				logging.String(logging.FieldErrorHint, "loosen acceptable_diff or reorder the search passes"),
			)
			continue
		}
		b = best.bounds
		if !best.cfg.FixedAspectRatio {
			b.minAspect, b.maxAspect = tightenAspect(res.Width, res.Height)
		}
		res, err = s.refine(ctx, best.cfg, b, full, best.branches)
		if err != nil {
			return overlay.Transform{}, fmt.Errorf("frame %d subpixel: %w", n, err)
		}
		res.Frame = n
		logger.Debug("search complete",
			logging.Int("config", i),
			logging.Int("winning_config", best.index),
			logging.String("transform", res.String()),
		)
		return res, nil
	}
	return overlay.Transform{}, ErrSearchExhausted
}

// pass is the outcome of one configuration's pyramid.
type pass struct {
	index    int
	cfg      Config
	bounds   bounds
	branches []overlay.Transform
}

// keepBest returns cur unless prev holds a strictly lower Diff. Refinement
// runs with the configuration of the pass that is kept.
func keepBest(prev, cur pass) pass {
	if prev.branches[0].Diff < cur.branches[0].Diff {
		return prev
	}
	return cur
}

// Repeat reapplies t to frame n at full resolution and returns it with the
// recomputed Diff.
func (s *Searcher) Repeat(ctx context.Context, t overlay.Transform, n int) (overlay.Transform, error) {
	full, err := s.load(ctx, n)
	if err != nil {
		return overlay.Transform{}, err
	}
	var res overlay.Transform
	err = guard(func() { res = s.single(full, t) })
	if err != nil {
		return overlay.Transform{}, fmt.Errorf("frame %d repeat: %w", n, err)
	}
	res.Frame = n
	return res, nil
}

func guard(fn func()) (err error) {
	defer recoverWorker(&err)
	fn()
	return nil
}

func (s *Searcher) load(ctx context.Context, n int) (level, error) {
	var lv level
	var err error
	if lv.src, err = s.inputs.Source.Frame(ctx, n); err != nil {
		return level{}, fmt.Errorf("source frame %d: %w", n, err)
	}
	if lv.over, err = s.inputs.Overlay.Frame(ctx, n); err != nil {
		return level{}, fmt.Errorf("overlay frame %d: %w", n, err)
	}
	if s.inputs.SourceMask != nil {
		if lv.srcMask, err = s.inputs.SourceMask.Frame(ctx, n); err != nil {
			return level{}, fmt.Errorf("source mask frame %d: %w", n, err)
		}
	}
	if s.inputs.OverlayMask != nil {
		if lv.overMask, err = s.inputs.OverlayMask.Frame(ctx, n); err != nil {
			return level{}, fmt.Errorf("overlay mask frame %d: %w", n, err)
		}
	}
	return lv, nil
}

// pyramid runs the coarse-to-fine steps of one configuration and returns the
// branches kept at full resolution, best first.
func (s *Searcher) pyramid(ctx context.Context, cfg Config, b bounds, p *pyramid, logger *slog.Logger) ([]overlay.Transform, error) {
	steps, err := p.stepCount()
	if err != nil {
		return nil, err
	}
	if steps == 0 {
		return nil, fmt.Errorf("%w: source area %d is below min_sample_area %d",
			ErrSearchExhausted, p.full.src.Area(), cfg.MinSampleArea)
	}

	var branches []overlay.Transform
	for step := steps; step > 0; step-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		initial := len(branches) == 0
		scale := coef(cfg, step)
		coefDiff := 1.0
		if !initial {
			coefDiff = scale / coef(cfg, step+1)
		}
		lv := p.level(step)
		srcArea := lv.src.Area()
		g := stepGeometry{
			initial:      initial,
			coef:         scale,
			coefDiff:     coefDiff,
			srcW:         lv.src.Width,
			srcH:         lv.src.Height,
			overW:        lv.over.Width,
			overH:        lv.over.Height,
			minIntersect: int(float64(srcArea) * b.minSourceArea / 100),
			maxOverlay:   int(float64(srcArea) / (b.minOverlayArea / 100)),
		}
		candidates := generate(cfg, b, g, branches)
		set := overlay.NewBestSet(cfg.Branches)
		lim := limits{minIntersect: g.minIntersect, minOverlayArea: b.minOverlayArea}
		if scale < 1 {
			lim.slack = 0.5
		}
		if err := s.evaluate(ctx, lv, candidates, lim, set); err != nil {
			return nil, fmt.Errorf("step %d: %w", step, err)
		}
		branches = prune(set.Items(), cfg)
		if len(branches) == 0 {
			return nil, fmt.Errorf("%w: step %d tested %d candidates", ErrSearchExhausted, step, len(candidates))
		}
		for _, br := range branches {
			logger.Debug("step branch",
				logging.Int("step", step),
				logging.Int("candidates", len(candidates)),
				logging.String("transform", br.String()),
			)
		}
	}
	return branches, nil
}

// prune keeps at most cfg.Branches entries whose Diff lies within
// BranchMaxDiff percent of the best. items must be sorted best first and
// free of geometric duplicates.
func prune(items []overlay.Transform, cfg Config) []overlay.Transform {
	if len(items) == 0 {
		return nil
	}
	first := items[0].Diff
	var out []overlay.Transform
	for i, t := range items {
		if i >= cfg.Branches {
			break
		}
		if t.Diff >= math.SmallestNonzeroFloat32 && t.Diff/first >= 1+cfg.BranchMaxDiff/100 {
			break
		}
		out = append(out, t)
	}
	return out
}

// tightenAspect bounds the aspect ratio to half a pixel around width x height.
func tightenAspect(width, height int) (float64, float64) {
	const slack = 0.5
	w, h := float64(width), float64(height)
	if width > height {
		return (w - slack) / h, (w + slack) / h
	}
	return w / (h + slack), w / (h - slack)
}

// pyramid caches the resampled levels of one frame for one configuration.
type pyramid struct {
	resampler frames.Resampler
	cfg       Config
	full      level
	cache     map[string]map[int]*frames.Image
}

func newPyramid(r frames.Resampler, cfg Config, full level) *pyramid {
	return &pyramid{resampler: r, cfg: cfg, full: full, cache: make(map[string]map[int]*frames.Image)}
}

// level returns the images compared at step: the source scaled to the step
// and the overlay scaled to the previous, finer step so candidates are
// rendered from a base at least as large as themselves.
func (p *pyramid) level(step int) level {
	lv := level{
		src:  p.resize("src", p.full.src, step),
		over: p.resize("over", p.full.over, step-1),
	}
	if p.full.srcMask != nil {
		lv.srcMask = p.resize("srcmask", p.full.srcMask, step)
	}
	if p.full.overMask != nil {
		lv.overMask = p.resize("overmask", p.full.overMask, step-1)
	}
	return lv
}

// resize scales img to step, resampling from the level one octave finer so
// no single pass shrinks by more than about half. Steps at or below full
// resolution return img.
func (p *pyramid) resize(name string, img *frames.Image, step int) *frames.Image {
	if step <= 1 {
		return img
	}
	levels := p.cache[name]
	if levels == nil {
		levels = make(map[int]*frames.Image)
		p.cache[name] = levels
	}
	if cached, ok := levels[step]; ok {
		return cached
	}
	base := p.resize(name, img, baseStep(p.cfg, step))
	scale := coef(p.cfg, step)
	w := max(1, round(float64(img.Width)*scale))
	h := max(1, round(float64(img.Height)*scale))
	out := p.resampler.Render(base, w, h, 0, frames.Crop{})
	levels[step] = out
	return out
}

// stepCount returns how many steps the pyramid uses. Steps stop once the
// scaled source falls below MinSampleArea; below RequiredSampleArea a level
// is only used when it still resembles its base.
func (p *pyramid) stepCount() (count int, err error) {
	err = guard(func() {
		area := float64(p.full.src.Area())
		for ; ; count++ {
			next := count + 1
			scale := coef(p.cfg, next)
			testArea := scale * scale * area
			if testArea < float64(p.cfg.MinSampleArea) {
				return
			}
			if testArea < float64(p.cfg.RequiredSampleArea) && p.cfg.MaxSampleDiff < 255 {
				if p.sampleDiff(next) > p.cfg.MaxSampleDiff {
					return
				}
			}
		}
	})
	return count, err
}

// sampleDiff measures the detail lost at step by scaling it back up to its
// base level and comparing.
func (p *pyramid) sampleDiff(step int) float64 {
	base := p.resize("src", p.full.src, baseStep(p.cfg, step))
	scaled := p.resize("src", p.full.src, step)
	test := p.resampler.Render(scaled, base.Width, base.Height, 0, frames.Crop{})
	return framediff.Difference(framediff.Full(base), framediff.Region{}, framediff.Full(test), framediff.Region{})
}
