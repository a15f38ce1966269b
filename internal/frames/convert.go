package frames

import (
	"image"
	"image/color"
	"image/draw"
)

// toStd wraps the samples in a standard library image so the x/image
// interpolators can operate on them. Samples are copied for 16-bit layouts
// because image.Gray16 and image.NRGBA64 store big-endian bytes.
func (im *Image) toStd() draw.Image {
	r := im.Bounds()
	switch {
	case im.Channels == 1 && !im.Wide():
		return &image.Gray{Pix: im.Pix8, Stride: im.Stride, Rect: r}
	case im.Channels == 4 && !im.Wide():
		return &image.NRGBA{Pix: im.Pix8, Stride: im.Stride, Rect: r}
	case im.Channels == 1:
		out := image.NewGray16(r)
		for i, v := range im.Pix16 {
			out.Pix[2*i] = uint8(v >> 8)
			out.Pix[2*i+1] = uint8(v)
		}
		return out
	default:
		out := image.NewNRGBA64(r)
		for i, v := range im.Pix16 {
			out.Pix[2*i] = uint8(v >> 8)
			out.Pix[2*i+1] = uint8(v)
		}
		return out
	}
}

// blankStd allocates a zeroed standard image with the layout of im.
func (im *Image) blankStd(width, height int) draw.Image {
	r := image.Rect(0, 0, width, height)
	switch {
	case im.Channels == 1 && !im.Wide():
		return image.NewGray(r)
	case im.Channels == 4 && !im.Wide():
		return image.NewNRGBA(r)
	case im.Channels == 1:
		return image.NewGray16(r)
	default:
		return image.NewNRGBA64(r)
	}
}

// fromStd copies a standard image produced by blankStd back into an Image
// with the given depth.
func fromStd(src image.Image, channels, depth int) *Image {
	b := src.Bounds()
	out := NewImage(b.Dx(), b.Dy(), channels, depth)
	switch s := src.(type) {
	case *image.Gray:
		for y := 0; y < b.Dy(); y++ {
			copy(out.Pix8[y*out.Stride:(y+1)*out.Stride], s.Pix[y*s.Stride:y*s.Stride+b.Dx()])
		}
	case *image.NRGBA:
		for y := 0; y < b.Dy(); y++ {
			copy(out.Pix8[y*out.Stride:(y+1)*out.Stride], s.Pix[y*s.Stride:y*s.Stride+4*b.Dx()])
		}
	case *image.Gray16:
		for y := 0; y < b.Dy(); y++ {
			row := s.Pix[y*s.Stride:]
			for x := 0; x < b.Dx(); x++ {
				out.Pix16[y*out.Stride+x] = uint16(row[2*x])<<8 | uint16(row[2*x+1])
			}
		}
	case *image.NRGBA64:
		for y := 0; y < b.Dy(); y++ {
			row := s.Pix[y*s.Stride:]
			for x := 0; x < 4*b.Dx(); x++ {
				out.Pix16[y*out.Stride+x] = uint16(row[2*x])<<8 | uint16(row[2*x+1])
			}
		}
	default:
		copyGeneric(out, src)
	}
	return out
}

func copyGeneric(out *Image, src image.Image) {
	b := src.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := src.At(b.Min.X+x, b.Min.Y+y)
			if out.Channels == 1 {
				g := color.Gray16Model.Convert(c).(color.Gray16)
				out.Set(x, y, 0, scaleSample(int(g.Y), out.Depth))
				continue
			}
			n := color.NRGBA64Model.Convert(c).(color.NRGBA64)
			out.Set(x, y, 0, scaleSample(int(n.R), out.Depth))
			out.Set(x, y, 1, scaleSample(int(n.G), out.Depth))
			out.Set(x, y, 2, scaleSample(int(n.B), out.Depth))
			out.Set(x, y, 3, scaleSample(int(n.A), out.Depth))
		}
	}
}

// scaleSample narrows a 16-bit sample to depth bits.
func scaleSample(v16, depth int) int {
	return v16 >> (16 - depth)
}

// FromImage converts a decoded image into an Image. Gray images keep one
// channel; everything else becomes four-channel NRGBA. 16-bit sources keep
// 16-bit depth.
func FromImage(src image.Image) *Image {
	switch s := src.(type) {
	case *image.Gray:
		return fromStd(s, 1, 8)
	case *image.Gray16:
		return fromStd(s, 1, 16)
	case *image.NRGBA:
		return fromStd(s, 4, 8)
	case *image.NRGBA64, *image.RGBA64:
		out := NewImage(src.Bounds().Dx(), src.Bounds().Dy(), 4, 16)
		copyGeneric(out, src)
		return out
	default:
		out := NewImage(src.Bounds().Dx(), src.Bounds().Dy(), 4, 8)
		copyGeneric(out, src)
		return out
	}
}
