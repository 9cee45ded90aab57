// Package codec defines the vocabulary shared by every part of accelhound:
// codec identities, hardware backends, content profiles, session settings and
// the provider contract that concrete media libraries implement.
package codec

import (
	"fmt"
	"strings"
)

// Public constants (alphabetical)

// BackendNone marks the absence of a hardware backend.
const BackendNone Backend = ""

// IDNone is the identity-none marker. It never names a real codec.
const IDNone ID = ""

// Capability flags advertised by a codec.
const (
	// CapHardware is set when the codec declares itself hardware backed.
	CapHardware Capability = 1 << iota

	// CapHybrid is set when the codec may fall back to software internally.
	CapHybrid

	// CapExperimental is set when the codec is flagged experimental.
	CapExperimental
)

// Hardware configuration methods, mirroring the ways a codec can be bound
// to a hardware backend.
const (
	// MethodHWDeviceCtx binds the codec through a device context.
	MethodHWDeviceCtx ConfigMethod = 1 << iota

	// MethodHWFramesCtx binds the codec through a frames context.
	MethodHWFramesCtx

	// MethodInternal means the codec manages the hardware by itself.
	MethodInternal

	// MethodAdHoc covers legacy, codec specific setups.
	MethodAdHoc
)

// Directions a codec can work in.
const (
	// DirectionEncode identifies encoders.
	DirectionEncode Direction = iota

	// DirectionDecode identifies decoders.
	DirectionDecode
)

// Media kinds handled by codecs.
const (
	// MediaKindUnknown is used when the provider cannot classify the codec.
	MediaKindUnknown MediaKind = iota

	// MediaKindVideo identifies video codecs.
	MediaKindVideo

	// MediaKindAudio identifies audio codecs.
	MediaKindAudio

	// MediaKindSubtitle identifies subtitle codecs.
	MediaKindSubtitle
)

// Public types (alphabetical)

// Backend is an opaque hardware acceleration backend tag such as "cuda" or
// "vaapi". Backends are discovered at runtime through a Provider.
type Backend string

// Candidate pairs a codec with the backend it was found for.
type Candidate struct {
	// Codec is the candidate codec.
	Codec Codec

	// Backend is the hardware backend the codec was listed under. It is
	// BackendNone for software listings.
	Backend Backend
}

// Capability is a bit set of codec capability flags.
type Capability uint8

// Codec describes a codec as reported by a provider. Values are immutable
// once the provider has built its codec table.
type Codec struct {
	// Name is the unique codec name, e.g. "h264_nvenc".
	Name string

	// ID is the compression format identity, e.g. "h264".
	ID ID

	// Kind is the media kind the codec handles.
	Kind MediaKind

	// Direction tells whether this is an encoder or a decoder.
	Direction Direction

	// Capabilities holds the advertised capability flags.
	Capabilities Capability

	// HardwareConfigs lists the hardware descriptors in provider order.
	HardwareConfigs []HardwareConfig

	// Description is the human readable long name, when known.
	Description string
}

// ConfigMethod is a bit set of hardware configuration methods.
type ConfigMethod uint8

// Direction is the coding direction of a codec.
type Direction int

// HardwareConfig is one hardware descriptor of a codec.
type HardwareConfig struct {
	// Backend is the device type the descriptor applies to.
	Backend Backend

	// Methods lists the ways the codec can be bound to that backend.
	Methods ConfigMethod
}

// ID identifies a compression format independently of the codec
// implementation.
type ID string

// MediaKind is the media type a codec handles.
type MediaKind int

// Public functions (alphabetical)

// String returns the backend tag, or "none" for BackendNone.
func (b Backend) String() string {
	if b == BackendNone {
		return "none"
	}
	return string(b)
}

// Has reports whether every flag in f is set.
func (c Capability) Has(f Capability) bool {
	return c&f == f
}

// DeviceConfig returns the first descriptor that binds through a device
// context and matches the given backend. Descriptors after the first match
// are never considered.
func (c Codec) DeviceConfig(b Backend) (HardwareConfig, bool) {
	for _, hc := range c.HardwareConfigs {
		if hc.Methods.Has(MethodHWDeviceCtx) && hc.Backend == b {
			return hc, true
		}
	}
	return HardwareConfig{}, false
}

// IsHardware reports whether the codec declares the hardware capability.
func (c Codec) IsHardware() bool {
	return c.Capabilities.Has(CapHardware)
}

// String formats the codec as "name (id)".
func (c Codec) String() string {
	if c.ID == IDNone || string(c.ID) == c.Name {
		return c.Name
	}
	return fmt.Sprintf("%s (%s)", c.Name, c.ID)
}

// Has reports whether every method in m is set.
func (m ConfigMethod) Has(f ConfigMethod) bool {
	return m&f == f
}

// String lists the set methods separated by "|".
func (m ConfigMethod) String() string {
	var names []string
	if m.Has(MethodHWDeviceCtx) {
		names = append(names, "device")
	}
	if m.Has(MethodHWFramesCtx) {
		names = append(names, "frames")
	}
	if m.Has(MethodInternal) {
		names = append(names, "internal")
	}
	if m.Has(MethodAdHoc) {
		names = append(names, "adhoc")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// String returns "encoder" or "decoder".
func (d Direction) String() string {
	if d == DirectionDecode {
		return "decoder"
	}
	return "encoder"
}

// String returns the media kind name.
func (k MediaKind) String() string {
	switch k {
	case MediaKindVideo:
		return "video"
	case MediaKindAudio:
		return "audio"
	case MediaKindSubtitle:
		return "subtitle"
	default:
		return "unknown"
	}
}
