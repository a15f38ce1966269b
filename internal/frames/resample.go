package frames

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Crop trims the source before resizing, in source pixels per edge.
// Fractional values are honoured by the affine transform.
type Crop struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// IsZero reports whether no edge is trimmed.
func (c Crop) IsZero() bool {
	return c.Left == 0 && c.Top == 0 && c.Right == 0 && c.Bottom == 0
}

// Resampler renders src at the requested size, rotation (hundredths of a
// degree) and crop. The returned image has the rotated bounding-box size.
type Resampler interface {
	Render(src *Image, width, height, angle int, crop Crop) *Image
}

// DrawResampler implements Resampler with golang.org/x/image/draw kernels.
type DrawResampler struct {
	Downsize draw.Interpolator
	Upsize   draw.Interpolator
	Rotate   draw.Interpolator
}

// NewDrawResampler resolves kernel names ("nearest", "approxbilinear",
// "bilinear", "catmullrom"). Empty names fall back to bilinear.
func NewDrawResampler(downsize, upsize, rotate string) (*DrawResampler, error) {
	down, err := ParseKernel(downsize)
	if err != nil {
		return nil, fmt.Errorf("downsize: %w", err)
	}
	up, err := ParseKernel(upsize)
	if err != nil {
		return nil, fmt.Errorf("upsize: %w", err)
	}
	rot, err := ParseKernel(rotate)
	if err != nil {
		return nil, fmt.Errorf("rotate: %w", err)
	}
	return &DrawResampler{Downsize: down, Upsize: up, Rotate: rot}, nil
}

// ParseKernel maps a kernel name onto an x/image/draw interpolator.
func ParseKernel(name string) (draw.Interpolator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "bilinear":
		return draw.BiLinear, nil
	case "nearest", "nearestneighbor":
		return draw.NearestNeighbor, nil
	case "approxbilinear":
		return draw.ApproxBiLinear, nil
	case "catmullrom", "bicubic":
		return draw.CatmullRom, nil
	default:
		return nil, fmt.Errorf("unsupported kernel %q", name)
	}
}

// Render implements Resampler. Crop, resize and rotation are folded into a
// single affine transform so the overlay is resampled once.
func (r *DrawResampler) Render(src *Image, width, height, angle int, crop Crop) *Image {
	if width <= 0 || height <= 0 {
		panic(fmt.Sprintf("frames: render to invalid size %dx%d", width, height))
	}
	angle = NormalizeAngle(angle)
	if angle == 0 && crop.IsZero() && width == src.Width && height == src.Height {
		return src
	}

	srcW := float64(src.Width) - crop.Left - crop.Right
	srcH := float64(src.Height) - crop.Top - crop.Bottom
	sx := float64(width) / srcW
	sy := float64(height) / srcH

	// crop + scale: (x - left) * sx
	m := f64.Aff3{sx, 0, -crop.Left * sx, 0, sy, -crop.Top * sy}

	outW, outH := width, height
	interp := r.Downsize
	if width*height > src.Width*src.Height {
		interp = r.Upsize
	}
	if angle != 0 {
		outW, outH = RotatedSize(width, height, angle)
		rad := float64(angle) / 100 * math.Pi / 180
		cos, sin := math.Cos(rad), math.Sin(rad)
		cx, cy := float64(width)/2, float64(height)/2
		rot := f64.Aff3{
			cos, -sin, float64(outW)/2 - cos*cx + sin*cy,
			sin, cos, float64(outH)/2 - sin*cx - cos*cy,
		}
		m = mul(rot, m)
		interp = r.Rotate
	}
	if interp == nil {
		interp = draw.BiLinear
	}

	dst := src.blankStd(outW, outH)
	interp.Transform(dst, m, src.toStd(), src.Bounds(), draw.Src, nil)
	return fromStd(dst, src.Channels, src.Depth)
}

// mul returns a∘b (b applied first).
func mul(a, b f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		a[0]*b[0] + a[1]*b[3], a[0]*b[1] + a[1]*b[4], a[0]*b[2] + a[1]*b[5] + a[2],
		a[3]*b[0] + a[4]*b[3], a[3]*b[1] + a[4]*b[4], a[3]*b[2] + a[4]*b[5] + a[5],
	}
}

// NormalizeAngle folds an angle in hundredths of a degree into [0, 36000).
func NormalizeAngle(angle int) int {
	angle %= 36000
	if angle < 0 {
		angle += 36000
	}
	return angle
}

// RotatedSize returns the bounding box of a width x height rectangle rotated
// by angle hundredths of a degree.
func RotatedSize(width, height, angle int) (int, int) {
	if NormalizeAngle(angle) == 0 {
		return width, height
	}
	rad := float64(angle) / 100 * math.Pi / 180
	cos, sin := math.Abs(math.Cos(rad)), math.Abs(math.Sin(rad))
	w := int(math.Round(float64(width)*cos + float64(height)*sin))
	h := int(math.Round(float64(width)*sin + float64(height)*cos))
	return max(w, 1), max(h, 1)
}
