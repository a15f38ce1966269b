package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"framealign/internal/frames"
	"framealign/internal/overlay"
)

// recordFileName names the record of frame n inside a --records directory.
func recordFileName(n int) string { return fmt.Sprintf("frame%05d.rec", n) }

// writeRecord attaches t to its frame's side channel and writes the encoded
// property to path.
func writeRecord(path string, t overlay.Transform) error {
	f := frames.NewFrame(t.Frame, nil)
	if err := overlay.Attach(f, t); err != nil {
		return err
	}
	data, _ := f.Props.Get(overlay.PropKey)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write transform record: %w", err)
	}
	return nil
}

func writeRecords(dir string, results []overlay.Transform) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create record directory: %w", err)
	}
	for _, t := range results {
		if err := writeRecord(filepath.Join(dir, recordFileName(t.Frame)), t); err != nil {
			return err
		}
	}
	return nil
}

// readRecord loads a record file into a frame's side channel and decodes it.
func readRecord(path string) (overlay.Transform, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return overlay.Transform{}, fmt.Errorf("read transform record: %w", err)
	}
	f := frames.NewFrame(0, nil)
	f.Props.Set(overlay.PropKey, data)
	t, _, err := overlay.FromFrame(f)
	if err != nil {
		return overlay.Transform{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return t, nil
}

func newRecordCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short:       "Inspect binary transform records",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}
	cmd.AddCommand(newRecordShowCommand())
	return cmd
}

func newRecordShowCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <record-file>...",
		Short: "Decode records written by search --record or run --records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records := make([]overlay.Transform, 0, len(args))
			for _, path := range args {
				t, err := readRecord(path)
				if err != nil {
					return err
				}
				records = append(records, t)
			}
			if jsonOutput {
				return writeJSON(cmd, transformsJSON(records))
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTransforms(records))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
