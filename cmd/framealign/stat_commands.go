package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"framealign/internal/overlay"
	"framealign/internal/statstore"
)

func newStatCommand(ctx *commandContext) *cobra.Command {
	statCmd := &cobra.Command{
		Use:   "stat",
		Short: "Inspect and maintain the per-frame stat store",
	}

	statCmd.AddCommand(newStatShowCommand(ctx))
	statCmd.AddCommand(newStatEraseCommand(ctx))
	statCmd.AddCommand(newStatExportCommand(ctx))
	statCmd.AddCommand(newStatImportCommand(ctx))

	return statCmd
}

func newStatShowCommand(ctx *commandContext) *cobra.Command {
	var (
		from       int
		to         int
		ranges     bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "List stored transforms",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(store *statstore.SQLite) error {
				out := cmd.OutOrStdout()
				if ranges {
					stored, err := statstore.Frames(cmd.Context(), store)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%d frames stored: %s\n", len(stored), formatRanges(stored))
					return nil
				}

				all, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				items := make([]overlay.Transform, 0, len(all))
				for _, t := range all {
					if t.Frame < from || (to >= 0 && t.Frame >= to) {
						continue
					}
					items = append(items, t)
				}
				if jsonOutput {
					return writeJSON(cmd, transformsJSON(items))
				}
				if len(items) == 0 {
					fmt.Fprintln(out, "No stored transforms")
					return nil
				}
				fmt.Fprintln(out, renderTransforms(items))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&from, "from", 0, "First frame to show")
	cmd.Flags().IntVar(&to, "to", -1, "Frame after the last one to show (default: every frame)")
	cmd.Flags().BoolVar(&ranges, "ranges", false, "Only print the stored frame ranges")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newStatEraseCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "erase [frame...]",
		Short: "Remove stored transforms so the next run searches again",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return errors.New("give frame numbers or --all, not both")
			}
			framesToErase := make([]int, 0, len(args))
			for _, arg := range args {
				n, err := strconv.Atoi(strings.TrimSpace(arg))
				if err != nil || n < 0 {
					return fmt.Errorf("invalid frame number %q", arg)
				}
				framesToErase = append(framesToErase, n)
			}
			return ctx.withStore(cmd, func(store *statstore.SQLite) error {
				out := cmd.OutOrStdout()
				if all {
					removed, err := store.Clear(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Erased %d stored transforms\n", removed)
					return nil
				}
				for _, n := range framesToErase {
					if err := store.Erase(cmd.Context(), n); err != nil {
						return fmt.Errorf("erase frame %d: %w", n, err)
					}
				}
				fmt.Fprintf(out, "Erased %d frames\n", len(framesToErase))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Erase every stored transform")
	return cmd
}

func newStatExportCommand(ctx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored transforms as text, one line per frame",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(store *statstore.SQLite) error {
				var w io.Writer = cmd.OutOrStdout()
				if outputPath != "" {
					f, err := os.Create(outputPath)
					if err != nil {
						return fmt.Errorf("create export file: %w", err)
					}
					defer f.Close()
					w = f
				}
				count, err := statstore.Export(cmd.Context(), store, w)
				if err != nil {
					return err
				}
				if outputPath != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Exported %d frames to %s\n", count, outputPath)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination file (default: stdout)")
	return cmd
}

func newStatImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Load transforms from a text export, replacing stored frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open import file: %w", err)
			}
			defer f.Close()
			return ctx.withStore(cmd, func(store *statstore.SQLite) error {
				count, err := statstore.Import(cmd.Context(), f, store)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d frames\n", count)
				return nil
			})
		},
	}
}

// formatRanges collapses sorted frame numbers into "a-b" spans.
func formatRanges(frameNumbers []int) string {
	if len(frameNumbers) == 0 {
		return "none"
	}
	var parts []string
	start, prev := frameNumbers[0], frameNumbers[0]
	flush := func() {
		if start == prev {
			parts = append(parts, strconv.Itoa(start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, prev))
		}
	}
	for _, n := range frameNumbers[1:] {
		if n == prev+1 {
			prev = n
			continue
		}
		flush()
		start, prev = n, n
	}
	flush()
	return strings.Join(parts, ", ")
}
