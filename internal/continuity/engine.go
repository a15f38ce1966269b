package continuity

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync/atomic"

	"framealign/internal/config"
	"framealign/internal/frames"
	"framealign/internal/logging"
	"framealign/internal/overlay"
	"framealign/internal/statstore"
)

// diffEpsilon is the largest Diff change an update run treats as unchanged.
const diffEpsilon = 1e-9

// Searcher computes transforms for single frames.
type Searcher interface {
	Search(ctx context.Context, n int) (overlay.Transform, error)
	Repeat(ctx context.Context, t overlay.Transform, n int) (overlay.Transform, error)
	OverlaySize(ctx context.Context) (image.Point, error)
	Len() int
}

// Stats counts the work an Engine has done.
type Stats struct {
	Searches  int64
	Repeats   int64
	CacheHits int64
	Writes    int64
}

type repeatKey struct {
	geometry overlay.Key
	frame    int
}

// Engine resolves per-frame transforms against a persisted store.
type Engine struct {
	searcher    Searcher
	store       statstore.Store
	cfg         config.Engine
	overlaySize image.Point
	frameCount  int
	logger      *slog.Logger

	searches *memo[int]
	repeats  *memo[repeatKey]
	locks    *frameLocks

	searchCount atomic.Int64
	repeatCount atomic.Int64
	hitCount    atomic.Int64
	writeCount  atomic.Int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logging.NewComponentLogger(logger, "continuity")
	}
}

// New builds an engine over searcher and store. The engine thresholds come
// from cfg; cfg.Mode selects how stored entries are treated.
func New(ctx context.Context, searcher Searcher, store statstore.Store, cfg config.Engine, opts ...Option) (*Engine, error) {
	if searcher == nil || store == nil {
		return nil, errors.New("continuity engine requires a searcher and a store")
	}
	if cfg.Mode == "" {
		cfg.Mode = config.ModeDefault
	}
	switch cfg.Mode {
	case config.ModeDefault, config.ModeUpdate, config.ModeErase, config.ModeReadOnly, config.ModeRecompute:
	default:
		return nil, fmt.Errorf("unsupported engine mode %q", cfg.Mode)
	}
	size, err := searcher.OverlaySize(ctx)
	if err != nil {
		return nil, fmt.Errorf("overlay size: %w", err)
	}
	e := &Engine{
		searcher:    searcher,
		store:       store,
		cfg:         cfg,
		overlaySize: size,
		frameCount:  searcher.Len(),
		logger:      logging.NewComponentLogger(nil, "continuity"),
		searches:    newMemo(func(n int) string { return fmt.Sprint(n) }),
		repeats: newMemo(func(k repeatKey) string {
			return fmt.Sprintf("%v@%d", k.geometry, k.frame)
		}),
		locks: newFrameLocks(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Len returns the number of frames the engine can resolve.
func (e *Engine) Len() int { return e.frameCount }

// Mode returns the active engine mode.
func (e *Engine) Mode() string { return e.cfg.Mode }

// Stats returns a snapshot of the work counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Searches:  e.searchCount.Load(),
		Repeats:   e.repeatCount.Load(),
		CacheHits: e.hitCount.Load(),
		Writes:    e.writeCount.Load(),
	}
}

// Transform returns the transform for frame n. Requests for the same frame
// are serialized; different frames may be resolved concurrently.
func (e *Engine) Transform(ctx context.Context, n int) (overlay.Transform, error) {
	if n < 0 || n >= e.frameCount {
		return overlay.Transform{}, fmt.Errorf("%w: %d not in [0,%d)", frames.ErrFrameRange, n, e.frameCount)
	}
	unlock := e.locks.lock(n)
	defer unlock()

	ctx = logging.WithFrame(ctx, n)
	logger := logging.WithContext(ctx, e.logger)

	if e.cfg.Mode == config.ModeErase {
		if err := e.store.Erase(ctx, n); err != nil {
			return overlay.Transform{}, err
		}
		e.decide(logger, "erased", "erase mode clears the stored entry")
		return overlay.Sentinel(n, e.overlaySize), nil
	}

	existing, err := e.store.Get(ctx, n)
	if err != nil {
		return overlay.Transform{}, err
	}
	if e.cfg.Mode == config.ModeReadOnly {
		if existing != nil {
			return *existing, nil
		}
		e.decide(logger, "sentinel", "read-only mode never searches")
		return overlay.Sentinel(n, e.overlaySize), nil
	}
	if existing != nil && e.cfg.Mode != config.ModeRecompute {
		if e.cfg.Mode == config.ModeUpdate {
			repeated, err := e.repeat(ctx, *existing, n)
			if err != nil {
				return overlay.Transform{}, err
			}
			if math.Abs(repeated.Diff-existing.Diff) > diffEpsilon {
				if err := e.put(ctx, repeated); err != nil {
					return overlay.Transform{}, err
				}
				e.decide(logger, "updated", "stored diff changed on repeat",
					logging.Float64("stored_diff", existing.Diff),
					logging.Float64("diff", repeated.Diff))
				return repeated, nil
			}
		}
		return *existing, nil
	}

	return e.resolve(ctx, n, logger)
}

// search returns the cached full search for frame n.
func (e *Engine) search(ctx context.Context, n int) (overlay.Transform, error) {
	t, hit, err := e.searches.get(n, func() (overlay.Transform, error) {
		e.searchCount.Add(1)
		return e.searcher.Search(ctx, n)
	})
	if hit {
		e.hitCount.Add(1)
	}
	return t, err
}

// repeat returns the cached result of reapplying t to frame n.
func (e *Engine) repeat(ctx context.Context, t overlay.Transform, n int) (overlay.Transform, error) {
	res, hit, err := e.repeats.get(repeatKey{geometry: t.Key(), frame: n}, func() (overlay.Transform, error) {
		e.repeatCount.Add(1)
		return e.searcher.Repeat(ctx, t, n)
	})
	if hit {
		e.hitCount.Add(1)
	}
	return res, err
}

func (e *Engine) put(ctx context.Context, t overlay.Transform) error {
	if err := e.store.Put(ctx, t); err != nil {
		return err
	}
	e.writeCount.Add(1)
	return nil
}

// putIfAbsent stores t unless its frame already has an entry. The frame lock
// is taken so a concurrent request for that frame sees either state.
func (e *Engine) putIfAbsent(ctx context.Context, t overlay.Transform) error {
	unlock := e.locks.lock(t.Frame)
	defer unlock()
	existing, err := e.store.Get(ctx, t.Frame)
	if err != nil || existing != nil {
		return err
	}
	return e.put(ctx, t)
}

func (e *Engine) decide(logger *slog.Logger, result, reason string, attrs ...logging.Attr) {
	attrs = append(logging.DecisionAttrs("continuity", result, reason), attrs...)
	logger.Info("continuity decision", logging.Args(attrs...)...)
}
