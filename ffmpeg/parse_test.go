package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/torre76/accelhound/codec"
)

// ParseTestSuite covers the parsers of ffmpeg listings.
type ParseTestSuite struct {
	suite.Suite
}

const encodersOutput = `Encoders:
 V..... = Video
 A..... = Audio
 S..... = Subtitle
 .F.... = Frame-level multithreading
 ..S... = Slice-level multithreading
 ...X.. = Codec is experimental
 ....B. = Supports draw_horiz_band
 .....D = Supports direct rendering method 1
 ------
 V....D a64multi             Multicolor charset for Commodore 64 (codec a64_multi)
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (codec h264)
 V....D h264_nvenc           NVIDIA NVENC H.264 encoder (codec h264)
 V..X.D av1_vulkan           AV1 (Vulkan) (codec av1)
 V....D mjpeg                MJPEG (Motion JPEG)
 A....D aac                  AAC (Advanced Audio Coding)
 S..... srt                  SubRip subtitle (codec subrip)
`

// TestParseCodecList checks row parsing and codec id extraction.
func (s *ParseTestSuite) TestParseCodecList() {
	entries := parseCodecList(encodersOutput)
	require.Len(s.T(), entries, 7)

	assert.Equal(s.T(), listEntry{
		name:        "a64multi",
		id:          "a64_multi",
		kind:        codec.MediaKindVideo,
		description: "Multicolor charset for Commodore 64",
	}, entries[0])

	assert.Equal(s.T(), "h264_nvenc", entries[2].name)
	assert.Equal(s.T(), codec.ID("h264"), entries[2].id)
	assert.Equal(s.T(), "NVIDIA NVENC H.264 encoder", entries[2].description)

	assert.True(s.T(), entries[3].experimental)
	assert.Equal(s.T(), codec.ID("av1"), entries[3].id)

	assert.Equal(s.T(), codec.ID("mjpeg"), entries[4].id)
	assert.Equal(s.T(), "MJPEG (Motion JPEG)", entries[4].description)

	assert.Equal(s.T(), codec.MediaKindAudio, entries[5].kind)
	assert.Equal(s.T(), codec.MediaKindSubtitle, entries[6].kind)
	assert.Equal(s.T(), codec.ID("subrip"), entries[6].id)
}

// TestParseCodecListWithoutTable checks that the legend alone yields
// nothing.
func (s *ParseTestSuite) TestParseCodecListWithoutTable() {
	assert.Empty(s.T(), parseCodecList("Encoders:\n V..... = Video\n"))
	assert.Empty(s.T(), parseCodecList(""))
}

// TestParseHWAccels checks the hardware acceleration list.
func (s *ParseTestSuite) TestParseHWAccels() {
	out := "Hardware acceleration methods:\nvdpau\ncuda\nvaapi\nqsv\ndrm\nopencl\nvulkan\n\n"
	assert.Equal(s.T(), []codec.Backend{"vdpau", "cuda", "vaapi", "qsv", "drm", "opencl", "vulkan"}, parseHWAccels(out))
	assert.Empty(s.T(), parseHWAccels("Hardware acceleration methods:\n\n"))
}

// TestParseCodecHelp checks capability, device and pixel format lines.
func (s *ParseTestSuite) TestParseCodecHelp() {
	out := `Encoder h264_nvenc [NVIDIA NVENC H.264 encoder]:
    General capabilities: dr1 delay hardware
    Threading capabilities: none
    Supported hardware devices: cuda cuda d3d11va d3d11va
    Supported pixel formats: yuv420p nv12 p010le yuv444p cuda d3d11
h264_nvenc AVOptions:
  -preset            <int>        E..V....... Set the encoding preset (from 0 to 18) (default p4)
`
	help := parseCodecHelp(out)
	assert.Equal(s.T(), []string{"dr1", "delay", "hardware"}, help.capabilities)
	assert.Equal(s.T(), []codec.Backend{"cuda", "d3d11va"}, help.devices)
	assert.Contains(s.T(), help.pixelFormats, "p010le")

	c := buildCodec(listEntry{name: "h264_nvenc", id: "h264", kind: codec.MediaKindVideo}, codec.DirectionEncode, help)
	assert.True(s.T(), c.IsHardware())
	require.Len(s.T(), c.HardwareConfigs, 2)
	assert.Equal(s.T(), codec.MethodHWDeviceCtx, c.HardwareConfigs[0].Methods)

	unknown := parseCodecHelp("Codec 'nope' is not recognized by FFmpeg.\n")
	assert.Empty(s.T(), unknown.devices)
	assert.Empty(s.T(), unknown.capabilities)
}

// TestParseFrameCRC checks packet lines, flags and headers.
func (s *ParseTestSuite) TestParseFrameCRC() {
	testCases := []struct {
		name    string
		line    string
		ok      bool
		pts     int64
		size    int
		keyOnly bool
	}{
		{name: "header", line: "#tb 0: 1/30", ok: false},
		{name: "empty", line: "   ", ok: false},
		{name: "key", line: "0,          0,          0,        1,    48213, 0x1b2c3d4e", ok: true, pts: 0, size: 48213, keyOnly: true},
		{name: "non key", line: "0,          1,          1,        1,     9120, 0x00ff00ff, F=0x0", ok: true, pts: 1, size: 9120, keyOnly: false},
		{name: "side data", line: "0,          2,          2,        1,     9000, 0x00ff00ff, F=0x0, S=1, 8", ok: true, pts: 2, size: 9000, keyOnly: false},
		{name: "garbage", line: "0, a, b, c, d, e", ok: false},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			pkt, ok := parseFrameCRC(tc.line)
			assert.Equal(s.T(), tc.ok, ok)
			if !tc.ok {
				return
			}
			assert.Equal(s.T(), tc.pts, pkt.PTS)
			assert.Equal(s.T(), tc.size, pkt.Size)
			assert.Equal(s.T(), tc.keyOnly, pkt.KeyFrame)
		})
	}
}

// TestNeedsHelp checks which codecs get their help page queried.
func (s *ParseTestSuite) TestNeedsHelp() {
	video := func(name string, id codec.ID) listEntry {
		return listEntry{name: name, id: id, kind: codec.MediaKindVideo}
	}
	assert.True(s.T(), needsHelp(video("h264_nvenc", "h264"), codec.DirectionEncode))
	assert.True(s.T(), needsHelp(video("hevc_qsv", "hevc"), codec.DirectionDecode))
	assert.False(s.T(), needsHelp(video("libx264", "h264"), codec.DirectionEncode))
	assert.False(s.T(), needsHelp(video("h264", "h264"), codec.DirectionEncode))
	assert.True(s.T(), needsHelp(video("h264", "h264"), codec.DirectionDecode))
	assert.False(s.T(), needsHelp(video("libdav1d", "av1"), codec.DirectionDecode))
	assert.False(s.T(), needsHelp(listEntry{name: "aac_mf", id: "aac", kind: codec.MediaKindAudio}, codec.DirectionEncode))
}

// TestSummarizeArgs checks error message shortening.
func (s *ParseTestSuite) TestSummarizeArgs() {
	got := summarizeArgs([]string{"-hide_banner", "-loglevel", "error", "-init_hw_device", "cuda=x", "-f", "null", "-"})
	assert.Equal(s.T(), "-init_hw_device cuda=x -f null -", got)
}

// TestTailBuffer checks that only the tail is kept.
func (s *ParseTestSuite) TestTailBuffer() {
	t := newTailBuffer(8)
	_, _ = t.Write([]byte("first line\n"))
	_, _ = t.Write([]byte("boom"))
	assert.Equal(s.T(), "ine\nboom", t.String())
	assert.Equal(s.T(), ": boom", t.suffix())
	assert.Equal(s.T(), "", newTailBuffer(8).suffix())
}

// TestParseSuite runs the parse test suite.
func TestParseSuite(t *testing.T) {
	suite.Run(t, new(ParseTestSuite))
}
