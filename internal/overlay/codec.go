package overlay

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"framealign/internal/frames"
)

// EncodedSize is the length of the binary form of a Transform.
const EncodedSize = 9*4 + 8 + 4

// PropKey is the side-channel key a transform is attached under.
const PropKey = "framealign.transform"

// ErrEncoding reports a malformed binary transform.
var ErrEncoding = errors.New("malformed transform encoding")

// MarshalBinary encodes t as little-endian int32 geometry fields followed by
// the float64 Diff and the int32 frame number.
func (t Transform) MarshalBinary() ([]byte, error) {
	fields := []int{t.X, t.Y, t.Width, t.Height, t.Angle, t.CropLeft, t.CropTop, t.CropRight, t.CropBottom}
	buf := make([]byte, 0, EncodedSize)
	for _, v := range fields {
		if v < math.MinInt32 || v > math.MaxInt32 {
			return nil, fmt.Errorf("%w: field value %d out of int32 range", ErrEncoding, v)
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(v)))
	}
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(t.Diff))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(t.Frame)))
	return buf, nil
}

// UnmarshalBinary decodes the layout written by MarshalBinary.
func (t *Transform) UnmarshalBinary(data []byte) error {
	if len(data) != EncodedSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrEncoding, len(data), EncodedSize)
	}
	var fields [9]int
	for i := range fields {
		fields[i] = int(int32(binary.LittleEndian.Uint32(data[i*4:])))
	}
	*t = Transform{
		X: fields[0], Y: fields[1], Width: fields[2], Height: fields[3], Angle: fields[4],
		CropLeft: fields[5], CropTop: fields[6], CropRight: fields[7], CropBottom: fields[8],
		Diff:  math.Float64frombits(binary.LittleEndian.Uint64(data[36:])),
		Frame: int(int32(binary.LittleEndian.Uint32(data[44:]))),
	}
	return nil
}

// Attach stores t in the frame's side channel.
func Attach(f *frames.Frame, t Transform) error {
	data, err := t.MarshalBinary()
	if err != nil {
		return err
	}
	if f.Props == nil {
		f.Props = frames.Props{}
	}
	f.Props.Set(PropKey, data)
	return nil
}

// FromFrame reads a transform previously attached to f.
func FromFrame(f *frames.Frame) (Transform, bool, error) {
	data, ok := f.Props.Get(PropKey)
	if !ok {
		return Transform{}, false, nil
	}
	var t Transform
	if err := t.UnmarshalBinary(data); err != nil {
		return Transform{}, true, err
	}
	return t, true, nil
}
