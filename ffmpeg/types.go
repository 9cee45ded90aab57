package ffmpeg

import (
	"github.com/torre76/accelhound/codec"
)

// Private types (alphabetical)

// codecHelp holds what "-h encoder=NAME" or "-h decoder=NAME" reports.
type codecHelp struct {
	// capabilities lists the "General capabilities" words.
	capabilities []string

	// devices lists "Supported hardware devices" in order, without repeats.
	devices []codec.Backend

	// pixelFormats lists "Supported pixel formats".
	pixelFormats []string
}

// listEntry is one row of "-encoders" or "-decoders".
type listEntry struct {
	name         string
	id           codec.ID
	kind         codec.MediaKind
	experimental bool
	description  string
}

// Public types (alphabetical)

// FFmpegInfo contains information about the FFmpeg installation.
type FFmpegInfo struct {
	// Installed is true if FFmpeg is found in the system.
	Installed bool

	// Path is the full path to the FFmpeg executable.
	Path string

	// Version is the version of FFmpeg.
	Version string

	// Configuration is the raw "configuration:" line.
	Configuration string

	// Libraries lists the linked lib* version lines.
	Libraries []string

	// Accelerations lists hardware related --enable-* switches found in the
	// configuration, e.g. "nvenc" or "vaapi".
	Accelerations []string
}

// Provider implements codec.Provider on top of an ffmpeg executable.
type Provider struct {
	info     *FFmpegInfo
	backends []codec.Backend
	codecs   []*codec.Codec
	encoders map[string]*codec.Codec
	devices  map[codec.Backend]string

	// swByID maps a codec id to a software encoder producing it. Decoder
	// verification uses it to craft a sample stream.
	swByID map[codec.ID]string
}
