package overlay

import (
	"cmp"
	"fmt"
	"image"
	"math"

	"framealign/internal/frames"
)

// CropUnit is the fixed-point denominator for crop fields: a crop value of
// CropUnit trims one full overlay pixel.
const CropUnit = 1000

// Transform places a resized, rotated and cropped overlay onto the source.
type Transform struct {
	X          int
	Y          int
	Width      int
	Height     int
	Angle      int // hundredths of a degree
	CropLeft   int
	CropTop    int
	CropRight  int
	CropBottom int
	Diff       float64
	Frame      int
}

// Unknown returns an empty record whose Diff is +Inf.
func Unknown() Transform {
	return Transform{Diff: math.Inf(1)}
}

// Sentinel returns the zero-confidence record reported when no search is run.
func Sentinel(frame int, overlaySize image.Point) Transform {
	return Transform{Frame: frame, Width: overlaySize.X, Height: overlaySize.Y, Diff: -1}
}

// IsSentinel reports whether t carries no solved geometry.
func (t Transform) IsSentinel() bool { return t.Diff < 0 }

// Key is the comparable geometric identity of a transform.
type Key struct {
	X, Y, Width, Height, Angle int

	CropLeft, CropTop, CropRight, CropBottom int
}

// Key returns the geometric identity of t with the angle normalized.
func (t Transform) Key() Key {
	return Key{
		X: t.X, Y: t.Y, Width: t.Width, Height: t.Height,
		Angle:    frames.NormalizeAngle(t.Angle),
		CropLeft: t.CropLeft, CropTop: t.CropTop, CropRight: t.CropRight, CropBottom: t.CropBottom,
	}
}

// Equal compares geometry only; Diff and Frame are ignored.
func (t Transform) Equal(other Transform) bool {
	return t.Key() == other.Key()
}

// Rect returns the placement rectangle in source coordinates.
func (t Transform) Rect() image.Rectangle {
	return image.Rect(t.X, t.Y, t.X+t.Width, t.Y+t.Height)
}

// NearlyEqual reports whether other places the overlay at almost the same
// spot: same angle, and the symmetric difference of the two placement
// rectangles is at most tolerance times the overlay area.
func (t Transform) NearlyEqual(other Transform, overlaySize image.Point, tolerance float64) bool {
	if frames.NormalizeAngle(t.Angle) != frames.NormalizeAngle(other.Angle) {
		return false
	}
	area := overlaySize.X * overlaySize.Y
	if area <= 0 {
		return t.Equal(other)
	}
	a, b := t.Rect(), other.Rect()
	inter := a.Intersect(b)
	sym := rectArea(a) + rectArea(b) - 2*rectArea(inter)
	return float64(sym)/float64(area) <= tolerance
}

func rectArea(r image.Rectangle) int {
	if r.Empty() {
		return 0
	}
	return r.Dx() * r.Dy()
}

// Crop converts the crop fields into overlay pixels.
func (t Transform) Crop() frames.Crop {
	return frames.Crop{
		Left:   float64(t.CropLeft) / CropUnit,
		Top:    float64(t.CropTop) / CropUnit,
		Right:  float64(t.CropRight) / CropUnit,
		Bottom: float64(t.CropBottom) / CropUnit,
	}
}

// WithCrop returns t with its crop fields set from a pixel crop.
func (t Transform) WithCrop(c frames.Crop) Transform {
	t.CropLeft = int(math.Round(c.Left * CropUnit))
	t.CropTop = int(math.Round(c.Top * CropUnit))
	t.CropRight = int(math.Round(c.Right * CropUnit))
	t.CropBottom = int(math.Round(c.Bottom * CropUnit))
	return t
}

// Validate checks the size and crop invariants.
func (t Transform) Validate() error {
	if t.Width <= 0 || t.Height <= 0 {
		return fmt.Errorf("invalid size %dx%d", t.Width, t.Height)
	}
	for _, c := range []int{t.CropLeft, t.CropTop, t.CropRight, t.CropBottom} {
		if c < 0 {
			return fmt.Errorf("negative crop %d", c)
		}
	}
	return nil
}

// Compare orders by Diff, then by geometry, giving a total order so the
// best record never depends on evaluation order.
func Compare(a, b Transform) int {
	return cmp.Or(
		cmp.Compare(a.Diff, b.Diff),
		cmp.Compare(a.Width, b.Width),
		cmp.Compare(a.Height, b.Height),
		cmp.Compare(frames.NormalizeAngle(a.Angle), frames.NormalizeAngle(b.Angle)),
		cmp.Compare(a.CropLeft, b.CropLeft),
		cmp.Compare(a.CropTop, b.CropTop),
		cmp.Compare(a.CropRight, b.CropRight),
		cmp.Compare(a.CropBottom, b.CropBottom),
		cmp.Compare(a.Y, b.Y),
		cmp.Compare(a.X, b.X),
	)
}

// Less reports whether a ranks before b.
func Less(a, b Transform) bool { return Compare(a, b) < 0 }

func (t Transform) String() string {
	return fmt.Sprintf("frame=%d pos=(%d,%d) size=%dx%d angle=%.2f crop=(%d,%d,%d,%d) diff=%.4f",
		t.Frame, t.X, t.Y, t.Width, t.Height, float64(t.Angle)/100,
		t.CropLeft, t.CropTop, t.CropRight, t.CropBottom, t.Diff)
}
