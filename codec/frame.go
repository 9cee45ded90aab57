package codec

import "fmt"

// Public types (alphabetical)

// Frame is a tightly packed planar 4:2:0 picture. All planes share one
// backing buffer laid out as Y, then U, then V with no row padding, which is
// the layout raw video pipes and libav's align=1 copies expect.
type Frame struct {
	Width  int
	Height int
	Format PixelFormat
	PTS    int64

	// Planes holds Y, U and V sub-slices of the backing buffer.
	Planes [3][]byte

	// Strides holds the byte length of one row of each plane.
	Strides [3]int

	buf []byte
}

// Packet is one unit of compressed output.
type Packet struct {
	Data     []byte
	PTS      int64
	Size     int
	KeyFrame bool
}

// Public functions (alphabetical)

// NewFrame allocates a frame for the given geometry and pixel format.
// Width and height must be positive and even.
func NewFrame(width, height int, format PixelFormat) (*Frame, error) {
	if width <= 0 || height <= 0 || width%2 != 0 || height%2 != 0 {
		return nil, fmt.Errorf("invalid frame geometry %dx%d", width, height)
	}
	if !format.Valid() {
		return nil, fmt.Errorf("unsupported pixel format %q", format)
	}

	bps := format.BytesPerSample()
	cw, ch := width/2, height/2
	lumaSize := width * height * bps
	chromaSize := cw * ch * bps

	f := &Frame{
		Width:   width,
		Height:  height,
		Format:  format,
		Strides: [3]int{width * bps, cw * bps, cw * bps},
		buf:     make([]byte, lumaSize+2*chromaSize),
	}
	f.Planes[0] = f.buf[:lumaSize:lumaSize]
	f.Planes[1] = f.buf[lumaSize : lumaSize+chromaSize : lumaSize+chromaSize]
	f.Planes[2] = f.buf[lumaSize+chromaSize:]
	return f, nil
}

// Bytes returns the contiguous backing buffer. It aliases the planes.
func (f *Frame) Bytes() []byte {
	return f.buf
}

// PlaneSize returns the width and height in samples of plane i.
func (f *Frame) PlaneSize(i int) (int, int) {
	if i == 0 {
		return f.Width, f.Height
	}
	return f.Width / 2, f.Height / 2
}

// Size returns the total byte size of the frame.
func (f *Frame) Size() int {
	return len(f.buf)
}

// Unref drops the packet payload so the packet can be reused.
func (p *Packet) Unref() {
	p.Data = p.Data[:0]
	p.PTS = 0
	p.Size = 0
	p.KeyFrame = false
}
