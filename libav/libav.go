// Package libav implements the codec provider in process on top of the
// libavcodec bindings of go-astiav. It is only functional in binaries built
// with the "libav" tag, which requires the FFmpeg development libraries.
package libav

import (
	"errors"
)

// Public constants (alphabetical)

// ProviderName identifies this provider in reports.
const ProviderName = "libav"

// Public variables (alphabetical)

// ErrNotBuilt is returned by New in binaries built without the libav tag.
var ErrNotBuilt = errors.New("libav: built without libav support (rebuild with -tags libav)")

// Private variables (alphabetical)

// deviceTypeNames are the hardware device types libavutil can know about,
// in the order libavutil declares them.
var deviceTypeNames = []string{
	"vdpau", "cuda", "vaapi", "dxva2", "qsv", "videotoolbox", "d3d11va",
	"drm", "opencl", "mediacodec", "vulkan", "d3d12va",
}
