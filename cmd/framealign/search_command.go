package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"framealign/internal/frames"
	"framealign/internal/logging"
	"framealign/internal/search"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var (
		sourceMask  string
		overlayMask string
		configsPath string
		recordPath  string
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "search <source-image> <overlay-image>",
		Short: "Find the transform that places one overlay image onto one source image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			runCtx := ctx.runContext(cmd.Context())

			inputs, err := loadStillInputs(args[0], args[1], sourceMask, overlayMask)
			if err != nil {
				return err
			}
			if err := inputs.Validate(runCtx); err != nil {
				return err
			}
			passes, err := ctx.searchPasses(configsPath)
			if err != nil {
				return err
			}
			resampler, err := ctx.resampler()
			if err != nil {
				return err
			}
			searcher, err := search.New(inputs, resampler, passes,
				search.WithWorkers(cfg.Engine.Workers),
				search.WithLogger(logging.WithContext(runCtx, logger)),
			)
			if err != nil {
				return err
			}

			result, err := searcher.Search(runCtx, 0)
			if err != nil {
				return err
			}

			if recordPath != "" {
				if err := writeRecord(recordPath, result); err != nil {
					return err
				}
			}
			if jsonOutput {
				return writeJSON(cmd, toJSON(result))
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(transformHeaders, [][]string{transformRow(result)}, transformAligns))
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceMask, "source-mask", "", "Mask image for the source (zero samples are ignored)")
	cmd.Flags().StringVar(&overlayMask, "overlay-mask", "", "Mask image for the overlay (zero samples are ignored)")
	cmd.Flags().StringVar(&configsPath, "configs", "", "Search pass list (.toml or .yaml) replacing the configured passes")
	cmd.Flags().StringVar(&recordPath, "record", "", "Write the binary transform record to this file")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func loadStillInputs(sourcePath, overlayPath, sourceMaskPath, overlayMaskPath string) (frames.Inputs, error) {
	load := func(path string) (frames.Clip, error) {
		if path == "" {
			return nil, nil
		}
		img, err := frames.LoadFile(path)
		if err != nil {
			return nil, err
		}
		return frames.Still{Image: img, Count: 1}, nil
	}
	var (
		in  frames.Inputs
		err error
	)
	if in.Source, err = load(sourcePath); err != nil {
		return frames.Inputs{}, err
	}
	if in.Overlay, err = load(overlayPath); err != nil {
		return frames.Inputs{}, err
	}
	if in.SourceMask, err = load(sourceMaskPath); err != nil {
		return frames.Inputs{}, err
	}
	if in.OverlayMask, err = load(overlayMaskPath); err != nil {
		return frames.Inputs{}, err
	}
	return in, nil
}
