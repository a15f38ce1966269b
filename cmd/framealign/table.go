package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"framealign/internal/overlay"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

var transformHeaders = []string{"Frame", "X", "Y", "Size", "Angle", "Crop (L,T,R,B)", "Diff"}

var transformAligns = []columnAlignment{alignRight, alignRight, alignRight, alignLeft, alignRight, alignLeft, alignRight}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// renderTransforms lays out one row per transform.
func renderTransforms(items []overlay.Transform) string {
	rows := make([][]string, 0, len(items))
	for _, t := range items {
		rows = append(rows, transformRow(t))
	}
	return renderTable(transformHeaders, rows, transformAligns)
}

func transformRow(t overlay.Transform) []string {
	return []string{
		strconv.Itoa(t.Frame),
		strconv.Itoa(t.X),
		strconv.Itoa(t.Y),
		fmt.Sprintf("%dx%d", t.Width, t.Height),
		strconv.FormatFloat(float64(t.Angle)/100, 'f', 2, 64),
		fmt.Sprintf("%d,%d,%d,%d", t.CropLeft, t.CropTop, t.CropRight, t.CropBottom),
		formatDiff(t.Diff),
	}
}

func formatDiff(diff float64) string {
	if diff < 0 {
		return "n/a"
	}
	return strconv.FormatFloat(diff, 'f', 4, 64)
}
