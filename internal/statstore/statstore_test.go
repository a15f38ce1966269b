package statstore_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"framealign/internal/overlay"
	"framealign/internal/statstore"
)

func sample(frame int) overlay.Transform {
	return overlay.Transform{
		Frame: frame, X: -3, Y: 12, Width: 640, Height: 360, Angle: 25,
		CropLeft: 125, CropTop: 0, CropRight: 500, CropBottom: 999, Diff: 1.25,
	}
}

func openSQLite(t *testing.T) *statstore.SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stat", "frames.db")
	store, err := statstore.OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoresRoundTrip(t *testing.T) {
	stores := map[string]statstore.Store{
		"memory": statstore.NewMemory(),
		"sqlite": openSQLite(t),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			got, err := store.Get(ctx, 4)
			if err != nil || got != nil {
				t.Fatalf("Get on empty store = %v, %v", got, err)
			}

			for _, frame := range []int{9, 4, 7} {
				if err := store.Put(ctx, sample(frame)); err != nil {
					t.Fatalf("Put(%d): %v", frame, err)
				}
			}
			updated := sample(7)
			updated.Diff = 0.5
			updated.X = 2
			if err := store.Put(ctx, updated); err != nil {
				t.Fatalf("Put update: %v", err)
			}

			got, err = store.Get(ctx, 7)
			if err != nil || got == nil {
				t.Fatalf("Get(7) = %v, %v", got, err)
			}
			if diff := cmp.Diff(updated, *got); diff != "" {
				t.Fatalf("Get(7) mismatch (-want +got):\n%s", diff)
			}

			if err := store.Erase(ctx, 9); err != nil {
				t.Fatalf("Erase: %v", err)
			}
			if err := store.Erase(ctx, 100); err != nil {
				t.Fatalf("Erase absent frame: %v", err)
			}
			frames, err := statstore.Frames(ctx, store)
			if err != nil {
				t.Fatalf("Frames: %v", err)
			}
			if diff := cmp.Diff([]int{4, 7}, frames); diff != "" {
				t.Fatalf("Frames mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "frames.db")
	store, err := statstore.OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := store.Put(ctx, sample(3)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := statstore.OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Get(ctx, 3)
	if err != nil || got == nil {
		t.Fatalf("Get after reopen = %v, %v", got, err)
	}
	if diff := cmp.Diff(sample(3), *got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}

	removed, err := reopened.Clear(ctx)
	if err != nil || removed != 1 {
		t.Fatalf("Clear = %d, %v", removed, err)
	}
}

func TestSQLiteRejectsSecondOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "frames.db")
	first, err := statstore.OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer first.Close()

	if _, err := statstore.OpenSQLite(ctx, path); !errors.Is(err, statstore.ErrLocked) {
		t.Fatalf("second open error = %v, want ErrLocked", err)
	}
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := statstore.NewMemory()
	for _, frame := range []int{2, 0, 1} {
		if err := src.Put(ctx, sample(frame)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	var buf bytes.Buffer
	n, err := statstore.Export(ctx, src, &buf)
	if err != nil || n != 3 {
		t.Fatalf("Export = %d, %v", n, err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "0 -3 12 640 360 25 125 0 500 999 1.25" {
		t.Fatalf("first line = %q", lines[0])
	}

	dst := openSQLite(t)
	input := "# exported\n\n" + buf.String()
	if n, err := statstore.Import(ctx, strings.NewReader(input), dst); err != nil || n != 3 {
		t.Fatalf("Import = %d, %v", n, err)
	}
	want, _ := src.List(ctx)
	got, err := dst.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("imported mismatch (-want +got):\n%s", diff)
	}
}

func TestImportRejectsMalformedWithoutWriting(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"too few fields", "0 1 2 3\n"},
		{"non-integer", "0 1 2 x 4 0 0 0 0 0 1\n"},
		{"bad diff", "0 1 2 3 4 0 0 0 0 0 nope\n"},
		{"zero size", "0 1 2 0 4 0 0 0 0 0 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := statstore.NewMemory()
			input := "5 0 0 10 10 0 0 0 0 0 0\n" + tt.input
			_, err := statstore.Import(context.Background(), strings.NewReader(input), store)
			if !errors.Is(err, statstore.ErrMalformed) {
				t.Fatalf("Import error = %v, want ErrMalformed", err)
			}
			if items, _ := store.List(context.Background()); len(items) != 0 {
				t.Fatalf("store modified on failed import: %v", items)
			}
		})
	}
}
