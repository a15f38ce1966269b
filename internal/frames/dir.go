package frames

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".tif":  {},
	".tiff": {},
	".bmp":  {},
}

// Dir is a clip backed by a directory of image files, ordered by name.
// Decoded frames are kept so repeated lookups do not hit the disk.
type Dir struct {
	paths []string

	mu     sync.Mutex
	frames map[int]*Image
}

// OpenDir lists the image files in path.
func OpenDir(path string) (*Dir, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))]; ok {
			paths = append(paths, filepath.Join(path, entry.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no image files in %s", path)
	}
	sort.Strings(paths)
	return &Dir{paths: paths, frames: make(map[int]*Image)}, nil
}

// Len implements Clip.
func (d *Dir) Len() int { return len(d.paths) }

// Frame implements Clip.
func (d *Dir) Frame(_ context.Context, n int) (*Image, error) {
	if n < 0 || n >= len(d.paths) {
		return nil, fmt.Errorf("%w: %d of %d", ErrFrameRange, n, len(d.paths))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if img, ok := d.frames[n]; ok {
		return img, nil
	}
	img, err := LoadFile(d.paths[n])
	if err != nil {
		return nil, err
	}
	d.frames[n] = img
	return img, nil
}

// LoadFile decodes a PNG, JPEG, TIFF or BMP file.
func LoadFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	defer f.Close()
	decoded, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return FromImage(decoded), nil
}

// SavePNG encodes img as a PNG file at path.
func SavePNG(path string, img *Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create frame: %w", err)
	}
	if err := png.Encode(f, img.toStd()); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
