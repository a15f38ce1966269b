package testsupport

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"

	"framealign/internal/config"
	"framealign/internal/frames"
)

// SquareScene returns a black 8-bit gray source with a white square of the
// given size at (x, y) and a white overlay of the same size.
func SquareScene(width, height, x, y, size int) (*frames.Image, *frames.Image) {
	src := frames.NewImage(width, height, 1, 8)
	src.FillRect(image.Rect(x, y, x+size, y+size), 255)
	return src, frames.Blank(size, size, 1, 8)
}

// SquareSearch returns a search pass that only admits size x size
// placements, which keeps synthetic searches fast and exact.
func SquareSearch(size int) config.Search {
	s := config.DefaultSearch()
	s.MinSourceArea = 3
	s.MinOverlayArea = 100
	s.MinArea = size * size
	s.MaxArea = size * size
	s.Branches = 3
	return s
}

// WriteFrames writes imgs as numbered PNG files under dir and returns dir.
func WriteFrames(t testing.TB, dir string, imgs ...*frames.Image) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	for i, img := range imgs {
		path := filepath.Join(dir, fmt.Sprintf("frame%05d.png", i))
		if err := frames.SavePNG(path, img); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return dir
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
