package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"framealign/internal/continuity"
	"framealign/internal/frames"
	"framealign/internal/joinmap"
	"framealign/internal/logging"
	"framealign/internal/overlay"
	"framealign/internal/search"
	"framealign/internal/statstore"
)

type runOptions struct {
	sourceMask  string
	overlayMask string
	configsPath string
	joinPath    string
	joinClips   []string
	recordsDir  string
	mode        string
	from        int
	to          int
	jobs        int
	jsonOutput  bool
	quiet       bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <source-dir> <overlay-dir>",
		Short: "Resolve a transform for every frame of two image sequences",
		Long: "Resolve a transform for every frame of two image sequences.\n\n" +
			"Each directory holds one image per frame, ordered by file name. Results are\n" +
			"stored in the stat store so later runs reuse them according to the engine mode.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSequence(cmd, ctx, args[0], args[1], opts)
		},
	}

	cmd.Flags().StringVar(&opts.sourceMask, "source-mask", "", "Directory of source mask frames")
	cmd.Flags().StringVar(&opts.overlayMask, "overlay-mask", "", "Directory of overlay mask frames")
	cmd.Flags().StringVar(&opts.configsPath, "configs", "", "Search pass list (.toml or .yaml) replacing the configured passes")
	cmd.Flags().StringVar(&opts.joinPath, "join", "", "Join file splicing frames of --join-clip directories into the source")
	cmd.Flags().StringArrayVar(&opts.joinClips, "join-clip", nil, "Extra source clip directory referenced by the join file (repeatable)")
	cmd.Flags().StringVar(&opts.recordsDir, "records", "", "Directory receiving one binary transform record per resolved frame")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "Engine mode overriding the configuration (default, update, erase, readonly, recompute)")
	cmd.Flags().IntVar(&opts.from, "from", 0, "First frame to resolve")
	cmd.Flags().IntVar(&opts.to, "to", -1, "Frame after the last one to resolve (default: every frame)")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", 1, "Frames resolved concurrently")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Only print the summary")
	return cmd
}

func runSequence(cmd *cobra.Command, ctx *commandContext, sourceDir, overlayDir string, opts runOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	runCtx := ctx.runContext(cmd.Context())
	logger = logging.NewComponentLogger(logging.WithContext(runCtx, logger), "run")

	inputs, err := openSequenceInputs(sourceDir, overlayDir, opts)
	if err != nil {
		return err
	}
	if err := inputs.Validate(runCtx); err != nil {
		return err
	}
	passes, err := ctx.searchPasses(opts.configsPath)
	if err != nil {
		return err
	}
	resampler, err := ctx.resampler()
	if err != nil {
		return err
	}
	searcher, err := search.New(inputs, resampler, passes,
		search.WithWorkers(cfg.Engine.Workers),
		search.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	engineCfg := cfg.Engine
	if opts.mode != "" {
		engineCfg.Mode = opts.mode
	}

	return ctx.withStore(cmd, func(store *statstore.SQLite) error {
		engine, err := continuity.New(runCtx, searcher, store, engineCfg, continuity.WithLogger(logger))
		if err != nil {
			return err
		}
		from, to := opts.from, opts.to
		if to < 0 || to > engine.Len() {
			to = engine.Len()
		}
		if from < 0 || from >= to {
			return fmt.Errorf("frame range [%d,%d) is empty (clip has %d frames)", from, to, engine.Len())
		}

		logger.Info("run started",
			logging.String(logging.FieldEventType, "run_started"),
			logging.String("mode", engine.Mode()),
			logging.Int("from", from),
			logging.Int("to", to),
			logging.Int("search_passes", len(passes)),
			logging.String("stat_file", store.Path()),
		)
		results, err := resolveFrames(runCtx, engine, from, to, opts.jobs, logger)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logging.ErrorWithContext(logger, "run failed", "run_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "frames resolved before the failure stay stored; rerun to continue"),
				)
			}
			return err
		}
		stats := engine.Stats()
		logger.Info("run finished",
			logging.String(logging.FieldEventType, "run_finished"),
			logging.Int64("searches", stats.Searches),
			logging.Int64("repeats", stats.Repeats),
			logging.Int64("cache_hits", stats.CacheHits),
			logging.Int64("writes", stats.Writes),
		)

		if opts.recordsDir != "" {
			if err := writeRecords(opts.recordsDir, results); err != nil {
				return err
			}
		}
		if opts.jsonOutput {
			return writeJSON(cmd, map[string]any{
				"run_id":     ctx.runID,
				"mode":       engine.Mode(),
				"transforms": transformsJSON(results),
				"stats":      stats,
			})
		}
		out := cmd.OutOrStdout()
		if !opts.quiet {
			fmt.Fprintln(out, renderTransforms(results))
		}
		printRunSummary(out, engine.Mode(), len(results), stats)
		return nil
	})
}

func openSequenceInputs(sourceDir, overlayDir string, opts runOptions) (frames.Inputs, error) {
	open := func(path string) (frames.Clip, error) {
		if path == "" {
			return nil, nil
		}
		return frames.OpenDir(path)
	}
	var (
		in  frames.Inputs
		err error
	)
	if in.Source, err = open(sourceDir); err != nil {
		return frames.Inputs{}, err
	}
	if in.Overlay, err = open(overlayDir); err != nil {
		return frames.Inputs{}, err
	}
	if in.SourceMask, err = open(opts.sourceMask); err != nil {
		return frames.Inputs{}, err
	}
	if in.OverlayMask, err = open(opts.overlayMask); err != nil {
		return frames.Inputs{}, err
	}
	if opts.joinPath == "" {
		return in, nil
	}

	m, err := joinmap.Load(opts.joinPath, in.Source.Len())
	if err != nil {
		return frames.Inputs{}, err
	}
	extras := make([]frames.Clip, 0, len(opts.joinClips))
	for _, dir := range opts.joinClips {
		clip, err := frames.OpenDir(dir)
		if err != nil {
			return frames.Inputs{}, err
		}
		extras = append(extras, clip)
	}
	joined, err := joinmap.NewClip(m, in.Source, extras...)
	if err != nil {
		return frames.Inputs{}, err
	}
	in.Source = joined
	return in, nil
}

// resolveFrames asks the engine for every frame in [from, to) with at most
// jobs frames in flight and returns the results in frame order.
func resolveFrames(ctx context.Context, engine *continuity.Engine, from, to, jobs int, logger *slog.Logger) ([]overlay.Transform, error) {
	total := to - from
	results := make([]overlay.Transform, total)

	var (
		mu      sync.Mutex
		done    int
		sampler = logging.NewProgressSampler(10)
	)
	report := func() {
		mu.Lock()
		defer mu.Unlock()
		done++
		if sampler.ShouldLog(done, total, "resolve") {
			logger.Info("run progress",
				logging.String(logging.FieldEventType, "run_progress"),
				logging.Int("done", done),
				logging.Int("total", total),
				logging.Float64("percent", logging.Percent(done, total)),
			)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, jobs))
	for n := from; n < to; n++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			t, err := engine.Transform(gctx, n)
			if err != nil {
				return fmt.Errorf("frame %d: %w", n, err)
			}
			results[n-from] = t
			report()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func printRunSummary(out io.Writer, mode string, frameCount int, stats continuity.Stats) {
	p := message.NewPrinter(language.English)
	title := cases.Title(language.English).String(mode)
	p.Fprintf(out, "%s mode: %d frames resolved, %d searches, %d repeats, %d cache hits, %d writes\n",
		title, frameCount, stats.Searches, stats.Repeats, stats.CacheHits, stats.Writes)
}
