package framediff

import (
	"fmt"
	"image"
	"math"

	"framealign/internal/frames"
)

// Region is a rectangular window into an image. A Region with a nil Image is
// treated as an absent mask.
type Region struct {
	Image *frames.Image
	Rect  image.Rectangle
}

// Full returns a region covering the whole image. A nil image yields an
// absent region.
func Full(img *frames.Image) Region {
	if img == nil {
		return Region{}
	}
	return Region{Image: img, Rect: img.Bounds()}
}

// Window returns the region of img inside r.
func Window(img *frames.Image, r image.Rectangle) Region {
	if img == nil {
		return Region{}
	}
	return Region{Image: img, Rect: r}
}

// Present reports whether the region refers to an image.
func (r Region) Present() bool { return r.Image != nil }

type sample interface {
	~uint8 | ~uint16
}

// plane is a typed view of a region positioned at its top-left sample.
type plane[T sample] struct {
	pix      []T
	stride   int
	channels int
}

func view[T sample](r Region, pix []T) plane[T] {
	if r.Image == nil {
		return plane[T]{}
	}
	off := r.Rect.Min.Y*r.Image.Stride + r.Rect.Min.X*r.Image.Channels
	return plane[T]{pix: pix[off:], stride: r.Image.Stride, channels: r.Image.Channels}
}

// Difference returns sqrt(sum((a-b)^2) / n) over every sample of the two
// windows. A sample is skipped when a present mask is zero at that pixel; n
// counts the included samples and falls back to 1.
func Difference(a, maskA, b, maskB Region) float64 {
	checkRegions(a, maskA, b, maskB)
	width, height := a.Rect.Dx(), a.Rect.Dy()
	var (
		sum   uint64
		count int
	)
	if a.Image.Wide() {
		sum, count = squaredSum(
			view(a, a.Image.Pix16), view(b, b.Image.Pix16),
			maskView16(maskA), maskView16(maskB), width, height)
	} else {
		sum, count = squaredSum(
			view(a, a.Image.Pix8), view(b, b.Image.Pix8),
			maskView8(maskA), maskView8(maskB), width, height)
	}
	if count == 0 {
		count = 1
	}
	return math.Sqrt(float64(sum) / float64(count))
}

func maskView8(r Region) plane[uint8] {
	if r.Image == nil {
		return plane[uint8]{}
	}
	return view(r, r.Image.Pix8)
}

func maskView16(r Region) plane[uint16] {
	if r.Image == nil {
		return plane[uint16]{}
	}
	return view(r, r.Image.Pix16)
}

func squaredSum[T sample](a, b, ma, mb plane[T], width, height int) (uint64, int) {
	ch := a.channels
	var sum uint64
	if ma.pix == nil && mb.pix == nil {
		rowLen := width * ch
		for y := 0; y < height; y++ {
			ra := a.pix[y*a.stride : y*a.stride+rowLen]
			rb := b.pix[y*b.stride : y*b.stride+rowLen]
			for i, v := range ra {
				d := int64(v) - int64(rb[i])
				sum += uint64(d * d)
			}
		}
		return sum, width * height * ch
	}

	count := 0
	for y := 0; y < height; y++ {
		ra := a.pix[y*a.stride:]
		rb := b.pix[y*b.stride:]
		for x := 0; x < width; x++ {
			for c := 0; c < ch; c++ {
				if !maskOpen(ma, y, x, c) || !maskOpen(mb, y, x, c) {
					continue
				}
				i := x*ch + c
				d := int64(ra[i]) - int64(rb[i])
				sum += uint64(d * d)
				count++
			}
		}
	}
	return sum, count
}

// maskOpen reports whether the mask lets sample (x, c) of row y through.
// Single-channel masks apply to every channel.
func maskOpen[T sample](m plane[T], y, x, c int) bool {
	if m.pix == nil {
		return true
	}
	if m.channels == 1 {
		c = 0
	}
	return m.pix[y*m.stride+x*m.channels+c] > 0
}

func checkRegions(a, maskA, b, maskB Region) {
	if a.Image == nil || b.Image == nil {
		panic("framediff: nil image region")
	}
	if a.Rect.Dx() != b.Rect.Dx() || a.Rect.Dy() != b.Rect.Dy() {
		panic(fmt.Sprintf("framediff: region size mismatch %v vs %v", a.Rect.Size(), b.Rect.Size()))
	}
	if !a.Image.SameLayout(b.Image) {
		panic(fmt.Sprintf("framediff: layout mismatch %dch/%dbit vs %dch/%dbit",
			a.Image.Channels, a.Image.Depth, b.Image.Channels, b.Image.Depth))
	}
	checkInside(a)
	checkInside(b)
	for _, m := range []struct {
		mask  Region
		image Region
	}{{maskA, a}, {maskB, b}} {
		if !m.mask.Present() {
			continue
		}
		if m.mask.Rect.Size() != m.image.Rect.Size() {
			panic(fmt.Sprintf("framediff: mask size %v does not match region %v", m.mask.Rect.Size(), m.image.Rect.Size()))
		}
		if m.mask.Image.Wide() != m.image.Image.Wide() {
			panic("framediff: mask sample width differs from image")
		}
		if m.mask.Image.Channels != 1 && m.mask.Image.Channels != m.image.Image.Channels {
			panic(fmt.Sprintf("framediff: mask has %d channels, image has %d", m.mask.Image.Channels, m.image.Image.Channels))
		}
		checkInside(m.mask)
	}
}

func checkInside(r Region) {
	if !r.Rect.In(r.Image.Bounds()) {
		panic(fmt.Sprintf("framediff: window %v outside image bounds %v", r.Rect, r.Image.Bounds()))
	}
}
