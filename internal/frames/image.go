package frames

import (
	"fmt"
	"image"
)

// Image holds interleaved samples for one plane set. Exactly one of Pix8 and
// Pix16 is populated, selected by Depth.
type Image struct {
	Width    int
	Height   int
	Channels int
	Depth    int
	Stride   int
	Pix8     []uint8
	Pix16    []uint16
}

// NewImage allocates a zeroed image. Channels must be 1 or 4 and depth 8..16.
func NewImage(width, height, channels, depth int) *Image {
	if width <= 0 || height <= 0 {
		panic(fmt.Sprintf("frames: invalid image size %dx%d", width, height))
	}
	if channels != 1 && channels != 4 {
		panic(fmt.Sprintf("frames: unsupported channel count %d", channels))
	}
	if depth < 8 || depth > 16 {
		panic(fmt.Sprintf("frames: unsupported bit depth %d", depth))
	}
	img := &Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Depth:    depth,
		Stride:   width * channels,
	}
	if depth > 8 {
		img.Pix16 = make([]uint16, img.Stride*height)
	} else {
		img.Pix8 = make([]uint8, img.Stride*height)
	}
	return img
}

// Wide reports whether samples are stored as uint16.
func (im *Image) Wide() bool { return im.Depth > 8 }

// MaxValue returns the largest sample value for the image depth.
func (im *Image) MaxValue() int { return 1<<im.Depth - 1 }

// Bounds returns the image rectangle anchored at the origin.
func (im *Image) Bounds() image.Rectangle { return image.Rect(0, 0, im.Width, im.Height) }

// Area returns Width*Height.
func (im *Image) Area() int { return im.Width * im.Height }

// At returns the sample for channel c at (x, y).
func (im *Image) At(x, y, c int) int {
	i := y*im.Stride + x*im.Channels + c
	if im.Wide() {
		return int(im.Pix16[i])
	}
	return int(im.Pix8[i])
}

// Set stores the sample for channel c at (x, y).
func (im *Image) Set(x, y, c, v int) {
	i := y*im.Stride + x*im.Channels + c
	if im.Wide() {
		im.Pix16[i] = uint16(v)
		return
	}
	im.Pix8[i] = uint8(v)
}

// Fill sets every sample to v.
func (im *Image) Fill(v int) {
	if im.Wide() {
		for i := range im.Pix16 {
			im.Pix16[i] = uint16(v)
		}
		return
	}
	for i := range im.Pix8 {
		im.Pix8[i] = uint8(v)
	}
}

// FillRect sets every sample inside r (clipped to the image) to v.
func (im *Image) FillRect(r image.Rectangle, v int) {
	r = r.Intersect(im.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			for c := 0; c < im.Channels; c++ {
				im.Set(x, y, c, v)
			}
		}
	}
}

// Clone returns a deep copy.
func (im *Image) Clone() *Image {
	out := *im
	if im.Pix16 != nil {
		out.Pix16 = append([]uint16(nil), im.Pix16...)
	}
	if im.Pix8 != nil {
		out.Pix8 = append([]uint8(nil), im.Pix8...)
	}
	return &out
}

// SameLayout reports whether two images share channel count and depth.
func (im *Image) SameLayout(other *Image) bool {
	return im.Channels == other.Channels && im.Depth == other.Depth
}

// Blank returns an image of the given layout with every sample at its maximum.
func Blank(width, height, channels, depth int) *Image {
	img := NewImage(width, height, channels, depth)
	img.Fill(img.MaxValue())
	return img
}
