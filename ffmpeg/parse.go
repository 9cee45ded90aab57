package ffmpeg

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/torre76/accelhound/codec"
)

// Private variables (alphabetical)

// codecSuffixRegex extracts the codec id ffmpeg appends to descriptions of
// codecs whose name differs from their id, e.g. "(codec hevc)".
var codecSuffixRegex = regexp.MustCompile(`\s*\(codec ([A-Za-z0-9_]+)\)\s*$`)

// hardwareSuffixes mark wrapper codecs that drive a hardware API.
var hardwareSuffixes = []string{
	"_amf", "_cuvid", "_d3d12va", "_mediacodec", "_mf", "_mmal", "_nvenc",
	"_omx", "_oh", "_qsv", "_rkmpp", "_v4l2m2m", "_vaapi", "_videotoolbox",
	"_vulkan",
}

// hwaccelIDs are the formats whose native decoders carry hwaccel hooks.
var hwaccelIDs = map[codec.ID]bool{
	"av1": true, "h263": true, "h264": true, "hevc": true, "mjpeg": true,
	"mpeg1video": true, "mpeg2video": true, "mpeg4": true, "prores": true,
	"vc1": true, "vp8": true, "vp9": true, "vvc": true, "wmv3": true,
}

// Private functions (alphabetical)

// hasHardwareSuffix reports whether the codec name ends with a known
// hardware wrapper suffix.
func hasHardwareSuffix(name string) bool {
	for _, suffix := range hardwareSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// needsHelp tells whether a codec's hardware descriptors must be read from
// its help page. Only wrapper codecs and native decoders with hwaccel hooks
// can have any.
func needsHelp(e listEntry, dir codec.Direction) bool {
	if e.kind != codec.MediaKindVideo {
		return false
	}
	if hasHardwareSuffix(e.name) {
		return true
	}
	return dir == codec.DirectionDecode && string(e.id) == e.name && hwaccelIDs[e.id]
}

// parseCodecHelp reads the capability, device and pixel format lines of a
// codec help page.
func parseCodecHelp(output string) codecHelp {
	var help codecHelp
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if rest, ok := strings.CutPrefix(line, "General capabilities:"); ok {
			help.capabilities = strings.Fields(rest)
			continue
		}
		if rest, ok := strings.CutPrefix(line, "Supported hardware devices:"); ok {
			seen := make(map[codec.Backend]bool)
			for _, name := range strings.Fields(rest) {
				b := codec.Backend(name)
				if !seen[b] {
					seen[b] = true
					help.devices = append(help.devices, b)
				}
			}
			continue
		}
		if rest, ok := strings.CutPrefix(line, "Supported pixel formats:"); ok {
			help.pixelFormats = strings.Fields(rest)
		}
	}
	return help
}

// parseCodecList reads the table printed by "-encoders" or "-decoders".
// Rows start after the dashed separator; each row is a six character flag
// column, the codec name and its description.
func parseCodecList(output string) []listEntry {
	var entries []listEntry
	inTable := false
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !inTable {
			inTable = strings.HasPrefix(line, "---")
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != 6 {
			continue
		}
		flags, name := fields[0], fields[1]

		e := listEntry{
			name:         name,
			id:           codec.ID(name),
			kind:         mediaKindFromFlag(flags[0]),
			experimental: flags[3] == 'X',
		}
		_, desc, _ := strings.Cut(line, name)
		desc = strings.TrimSpace(desc)
		if m := codecSuffixRegex.FindStringSubmatchIndex(desc); m != nil {
			e.id = codec.ID(desc[m[2]:m[3]])
			desc = desc[:m[0]]
		}
		e.description = desc
		entries = append(entries, e)
	}
	return entries
}

// parseFrameCRC parses one data line of the framecrc muxer:
// "stream, dts, pts, duration, size, 0xcrc[, F=0xflags][, S=...]". Header
// lines start with '#'.
func parseFrameCRC(line string) (codec.Packet, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return codec.Packet{}, false
	}

	fields := strings.Split(line, ",")
	if len(fields) < 6 {
		return codec.Packet{}, false
	}
	pts, err := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64)
	if err != nil {
		return codec.Packet{}, false
	}
	size, err := strconv.Atoi(strings.TrimSpace(fields[4]))
	if err != nil {
		return codec.Packet{}, false
	}

	pkt := codec.Packet{PTS: pts, Size: size, KeyFrame: true}
	for _, extra := range fields[6:] {
		flags, ok := strings.CutPrefix(strings.TrimSpace(extra), "F=0x")
		if !ok {
			continue
		}
		if v, err := strconv.ParseUint(flags, 16, 32); err == nil {
			pkt.KeyFrame = v&1 == 1
		}
	}
	return pkt, true
}

// parseHWAccels reads the list printed by "-hwaccels".
func parseHWAccels(output string) []codec.Backend {
	var backends []codec.Backend
	started := false
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !started {
			started = strings.HasPrefix(line, "Hardware acceleration methods")
			continue
		}
		if line == "" {
			continue
		}
		backends = append(backends, codec.Backend(line))
	}
	return backends
}

func mediaKindFromFlag(b byte) codec.MediaKind {
	switch b {
	case 'V':
		return codec.MediaKindVideo
	case 'A':
		return codec.MediaKindAudio
	case 'S':
		return codec.MediaKindSubtitle
	default:
		return codec.MediaKindUnknown
	}
}
