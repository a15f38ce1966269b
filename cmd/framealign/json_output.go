package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"framealign/internal/overlay"
)

type transformJSON struct {
	Frame      int     `json:"frame"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Angle      float64 `json:"angle"`
	CropLeft   int     `json:"crop_left"`
	CropTop    int     `json:"crop_top"`
	CropRight  int     `json:"crop_right"`
	CropBottom int     `json:"crop_bottom"`
	Diff       float64 `json:"diff"`
}

func toJSON(t overlay.Transform) transformJSON {
	return transformJSON{
		Frame: t.Frame, X: t.X, Y: t.Y, Width: t.Width, Height: t.Height,
		Angle:    float64(t.Angle) / 100,
		CropLeft: t.CropLeft, CropTop: t.CropTop, CropRight: t.CropRight, CropBottom: t.CropBottom,
		Diff: t.Diff,
	}
}

func transformsJSON(items []overlay.Transform) []transformJSON {
	out := make([]transformJSON, 0, len(items))
	for _, t := range items {
		out = append(out, toJSON(t))
	}
	return out
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
