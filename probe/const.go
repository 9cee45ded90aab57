// Package probe is the capability probing and benchmarking engine. It lists
// the codec and hardware backend pairs a provider can really open, measures
// encoding throughput on synthetic frames, and picks the fastest encoder.
package probe

import (
	"fmt"
	"strings"

	"github.com/torre76/accelhound/codec"
)

// Public constants (alphabetical)

const (
	// DefaultBitRate is the target bitrate of benchmark sessions in b/s.
	DefaultBitRate = 5_000_000

	// DefaultFrames is the number of frames encoded per benchmark.
	DefaultFrames = 30

	// DefaultHeight is the benchmark frame height.
	DefaultHeight = 1080

	// DefaultWidth is the benchmark frame width.
	DefaultWidth = 1920
)

// Enumeration modes.
const (
	// ModeVerified only keeps pairs whose session actually opened.
	ModeVerified Mode = iota

	// ModeDeclared trusts the hardware capability flag of each codec.
	ModeDeclared
)

// Public types (alphabetical)

// Mode selects how hardware candidates are enumerated.
type Mode int

// Settings are the fixed parameters of a benchmark run.
type Settings struct {
	Width   int
	Height  int
	Frames  int
	BitRate int64
}

// Public functions (alphabetical)

// DefaultSettings returns 1920x1080, 30 frames at 5 Mb/s.
func DefaultSettings() Settings {
	return Settings{
		Width:   DefaultWidth,
		Height:  DefaultHeight,
		Frames:  DefaultFrames,
		BitRate: DefaultBitRate,
	}
}

// ParseMode parses "verified" or "declared".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "verified", "":
		return ModeVerified, nil
	case "declared":
		return ModeDeclared, nil
	default:
		return ModeVerified, fmt.Errorf("unknown probe mode %q (expected verified or declared)", s)
	}
}

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeDeclared {
		return "declared"
	}
	return "verified"
}

// SessionConfig builds the encode session configuration for a profile. The
// time base is 1/Frames, the frame rate Frames/1, one GOP spans all frames
// and B-frames are disabled.
func (s Settings) SessionConfig(p codec.ContentProfile) codec.SessionConfig {
	cfg := codec.SessionConfig{
		Width:       s.Width,
		Height:      s.Height,
		PixelFormat: p.PixelFormat(),
		BitRate:     s.BitRate,
		TimeBase:    codec.Rational{Num: 1, Den: s.Frames},
		FrameRate:   codec.Rational{Num: s.Frames, Den: 1},
		GOPSize:     s.Frames,
		MaxBFrames:  0,
	}
	if tags, ok := p.ColorTags(); ok {
		cfg.Color = &tags
	}
	return cfg
}
