package frames

import (
	"context"
	"errors"
	"fmt"
)

// ErrFrameRange is returned when a frame number lies outside a clip.
var ErrFrameRange = errors.New("frame out of range")

// Clip yields frames by number.
type Clip interface {
	Len() int
	Frame(ctx context.Context, n int) (*Image, error)
}

// Inputs bundles the clips the engine compares. Masks are optional.
type Inputs struct {
	Source      Clip
	Overlay     Clip
	SourceMask  Clip
	OverlayMask Clip
}

// Len returns the number of frames available in every clip.
func (in Inputs) Len() int {
	n := min(in.Source.Len(), in.Overlay.Len())
	if in.SourceMask != nil {
		n = min(n, in.SourceMask.Len())
	}
	if in.OverlayMask != nil {
		n = min(n, in.OverlayMask.Len())
	}
	return n
}

// Validate checks that source and overlay share a sample layout.
func (in Inputs) Validate(ctx context.Context) error {
	if in.Source == nil || in.Overlay == nil {
		return errors.New("source and overlay clips are required")
	}
	if in.Len() == 0 {
		return errors.New("clips contain no frames")
	}
	src, err := in.Source.Frame(ctx, 0)
	if err != nil {
		return fmt.Errorf("read source frame 0: %w", err)
	}
	over, err := in.Overlay.Frame(ctx, 0)
	if err != nil {
		return fmt.Errorf("read overlay frame 0: %w", err)
	}
	if src.Channels != over.Channels {
		return fmt.Errorf("source has %d channels, overlay has %d", src.Channels, over.Channels)
	}
	if src.Depth != over.Depth {
		return fmt.Errorf("source depth %d differs from overlay depth %d", src.Depth, over.Depth)
	}
	return nil
}

// Still repeats one image for Count frames.
type Still struct {
	Image *Image
	Count int
}

// Len implements Clip.
func (s Still) Len() int { return s.Count }

// Frame implements Clip.
func (s Still) Frame(_ context.Context, n int) (*Image, error) {
	if n < 0 || n >= s.Count {
		return nil, fmt.Errorf("%w: %d of %d", ErrFrameRange, n, s.Count)
	}
	return s.Image, nil
}

// Sequence serves frames from memory.
type Sequence []*Image

// Len implements Clip.
func (s Sequence) Len() int { return len(s) }

// Frame implements Clip.
func (s Sequence) Frame(_ context.Context, n int) (*Image, error) {
	if n < 0 || n >= len(s) {
		return nil, fmt.Errorf("%w: %d of %d", ErrFrameRange, n, len(s))
	}
	return s[n], nil
}
