package codec

import (
	"fmt"
	"strings"
)

// Public constants (alphabetical)

// Color tag values, named after the option values libavcodec accepts.
const (
	ColorPrimariesBT709  ColorPrimaries = "bt709"
	ColorPrimariesBT2020 ColorPrimaries = "bt2020"

	ColorTransferBT709     ColorTransfer = "bt709"
	ColorTransferSMPTE2084 ColorTransfer = "smpte2084"

	ColorSpaceBT709    ColorSpace = "bt709"
	ColorSpaceBT2020NC ColorSpace = "bt2020nc"
)

// Content profiles.
const (
	// ProfileNone leaves pixel format at 8 bit and sets no color tags.
	ProfileNone ContentProfile = iota

	// ProfileSDR uses 8 bit samples with BT.709 tags.
	ProfileSDR

	// ProfileHDR uses 10 bit samples with BT.2020 primaries and the PQ curve.
	ProfileHDR
)

// Pixel formats the benchmark can synthesize.
const (
	// PixelFormatYUV420P is 8 bit planar 4:2:0.
	PixelFormatYUV420P PixelFormat = "yuv420p"

	// PixelFormatYUV420P10LE is 10 bit planar 4:2:0 in 16 bit little endian
	// containers.
	PixelFormatYUV420P10LE PixelFormat = "yuv420p10le"
)

// Public types (alphabetical)

// ColorPrimaries names a set of color primaries.
type ColorPrimaries string

// ColorSpace names a YUV matrix.
type ColorSpace string

// ColorTags groups the three color description tags written to a stream.
type ColorTags struct {
	Primaries ColorPrimaries
	Transfer  ColorTransfer
	Space     ColorSpace
}

// ColorTransfer names a transfer characteristic.
type ColorTransfer string

// ContentProfile selects the pixel format and color tagging of a benchmark.
type ContentProfile int

// PixelFormat names a planar pixel layout.
type PixelFormat string

// Rational is a fraction such as a time base or a frame rate.
type Rational struct {
	Num int
	Den int
}

// SessionConfig carries every setting needed to open an encode session.
type SessionConfig struct {
	Width       int
	Height      int
	PixelFormat PixelFormat
	BitRate     int64
	TimeBase    Rational
	FrameRate   Rational
	GOPSize     int
	MaxBFrames  int

	// Color is nil when the codec defaults must be kept.
	Color *ColorTags

	// Device binds the session to a hardware device. It may be nil.
	Device Device
}

// Public functions (alphabetical)

// ContentProfiles returns every profile in declaration order.
func ContentProfiles() []ContentProfile {
	return []ContentProfile{ProfileNone, ProfileSDR, ProfileHDR}
}

// ParseContentProfile parses "none", "sdr" or "hdr" case-insensitively.
func ParseContentProfile(s string) (ContentProfile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return ProfileNone, nil
	case "sdr":
		return ProfileSDR, nil
	case "hdr":
		return ProfileHDR, nil
	default:
		return ProfileNone, fmt.Errorf("unknown media type %q (expected none, sdr or hdr)", s)
	}
}

// ColorTags returns the tags for the profile. The second value is false for
// ProfileNone, which keeps codec defaults.
func (p ContentProfile) ColorTags() (ColorTags, bool) {
	switch p {
	case ProfileSDR:
		return ColorTags{
			Primaries: ColorPrimariesBT709,
			Transfer:  ColorTransferBT709,
			Space:     ColorSpaceBT709,
		}, true
	case ProfileHDR:
		return ColorTags{
			Primaries: ColorPrimariesBT2020,
			Transfer:  ColorTransferSMPTE2084,
			Space:     ColorSpaceBT2020NC,
		}, true
	default:
		return ColorTags{}, false
	}
}

// PixelFormat returns the 10 bit format for HDR and the 8 bit one otherwise.
func (p ContentProfile) PixelFormat() PixelFormat {
	if p == ProfileHDR {
		return PixelFormatYUV420P10LE
	}
	return PixelFormatYUV420P
}

// String returns the lower case profile name.
func (p ContentProfile) String() string {
	switch p {
	case ProfileSDR:
		return "sdr"
	case ProfileHDR:
		return "hdr"
	default:
		return "none"
	}
}

// BitDepth returns the number of significant bits per sample.
func (f PixelFormat) BitDepth() int {
	if f == PixelFormatYUV420P10LE {
		return 10
	}
	return 8
}

// BytesPerSample returns the storage size of one sample.
func (f PixelFormat) BytesPerSample() int {
	if f.BitDepth() > 8 {
		return 2
	}
	return 1
}

// Valid reports whether the format is one the benchmark can synthesize.
func (f PixelFormat) Valid() bool {
	return f == PixelFormatYUV420P || f == PixelFormatYUV420P10LE
}

// String returns "num/den".
func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}
