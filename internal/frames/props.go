package frames

// Props is the opaque per-frame side channel that carries metadata from the
// engine to downstream consumers such as the renderer.
type Props map[string][]byte

// Set stores a copy of value under key.
func (p Props) Set(key string, value []byte) {
	p[key] = append([]byte(nil), value...)
}

// Get returns the value stored under key.
func (p Props) Get(key string) ([]byte, bool) {
	v, ok := p[key]
	return v, ok
}

// Frame pairs an image with its side-channel properties.
type Frame struct {
	Number int
	Image  *Image
	Props  Props
}

// NewFrame wraps img as frame n with an empty property map.
func NewFrame(n int, img *Image) *Frame {
	return &Frame{Number: n, Image: img, Props: Props{}}
}
