package statstore

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"framealign/internal/overlay"
)

// textFields is the column count of one exported line:
// frame x y width height angle crop_left crop_top crop_right crop_bottom diff.
const textFields = 11

// Export writes every stored transform to w, one line per frame.
func Export(ctx context.Context, s Store, w io.Writer) (int, error) {
	items, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	bw := bufio.NewWriter(w)
	for _, t := range items {
		if _, err := bw.WriteString(FormatLine(t)); err != nil {
			return 0, err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return 0, err
		}
	}
	return len(items), bw.Flush()
}

// FormatLine renders t in the text export format.
func FormatLine(t overlay.Transform) string {
	return fmt.Sprintf("%d %d %d %d %d %d %d %d %d %d %s",
		t.Frame, t.X, t.Y, t.Width, t.Height, t.Angle,
		t.CropLeft, t.CropTop, t.CropRight, t.CropBottom,
		strconv.FormatFloat(t.Diff, 'g', -1, 64))
}

// ParseLine reads one line of the text export format.
func ParseLine(line string) (overlay.Transform, error) {
	fields := strings.Fields(line)
	if len(fields) != textFields {
		return overlay.Transform{}, fmt.Errorf("%w: want %d fields, got %d", ErrMalformed, textFields, len(fields))
	}
	ints := make([]int, textFields-1)
	for i := range ints {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return overlay.Transform{}, fmt.Errorf("%w: field %d: %v", ErrMalformed, i+1, err)
		}
		ints[i] = v
	}
	diff, err := strconv.ParseFloat(fields[textFields-1], 64)
	if err != nil {
		return overlay.Transform{}, fmt.Errorf("%w: diff: %v", ErrMalformed, err)
	}
	t := overlay.Transform{
		Frame: ints[0], X: ints[1], Y: ints[2], Width: ints[3], Height: ints[4], Angle: ints[5],
		CropLeft: ints[6], CropTop: ints[7], CropRight: ints[8], CropBottom: ints[9],
		Diff: diff,
	}
	if err := t.Validate(); err != nil {
		return overlay.Transform{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return t, nil
}

// Import reads a text export and stores every record. The whole input is
// parsed before anything is written, so a malformed line leaves s untouched.
// Blank lines and lines starting with '#' are skipped.
func Import(ctx context.Context, r io.Reader, s Store) (int, error) {
	var items []overlay.Transform
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		t, err := ParseLine(line)
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", lineNo, err)
		}
		items = append(items, t)
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read stat text: %w", err)
	}
	for _, t := range items {
		if err := s.Put(ctx, t); err != nil {
			return 0, err
		}
	}
	return len(items), nil
}
