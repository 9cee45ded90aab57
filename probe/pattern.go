package probe

import (
	"encoding/binary"

	"github.com/torre76/accelhound/codec"
)

// Public functions (alphabetical)

// FillFrame writes the synthetic pattern for frame index i into f. The
// content depends only on the geometry, the pixel format and i, so two fills
// with the same arguments are byte-identical.
func FillFrame(f *codec.Frame, i int) {
	depth := f.Format.BitDepth()
	for plane := 0; plane < 3; plane++ {
		w, h := f.PlaneSize(plane)
		data := f.Planes[plane]
		stride := f.Strides[plane]
		for y := 0; y < h; y++ {
			row := data[y*stride : (y+1)*stride]
			if depth > 8 {
				for x := 0; x < w; x++ {
					binary.LittleEndian.PutUint16(row[2*x:], Sample(plane, x, y, i, depth))
				}
				continue
			}
			for x := 0; x < w; x++ {
				row[x] = byte(Sample(plane, x, y, i, depth))
			}
		}
	}
}

// Sample returns the value of one sample of the synthetic pattern.
//
// For 8 bit content the planes are
//
//	Y = (x + y + 3i) & 0xFF
//	U = (128 + y + 2i) & 0xFF
//	V = (64 + x + 5i) & 0xFF
//
// and for deeper content the same ramps are centered on the 10 bit range and
// scaled by 4 inside a 0x3FF mask.
func Sample(plane, x, y, i, depth int) uint16 {
	tenBit := depth > 8
	var v int
	switch plane {
	case 0:
		v = x + y + 3*i
	case 1:
		if tenBit {
			v = 512 + y + 2*i
		} else {
			v = 128 + y + 2*i
		}
	default:
		if tenBit {
			v = 256 + x + 5*i
		} else {
			v = 64 + x + 5*i
		}
	}

	if tenBit {
		return uint16((v * 4) & 0x3FF)
	}
	return uint16(v & 0xFF)
}
