//go:build libav

package libav

import (
	"context"
	"sync"

	"github.com/asticode/go-astiav"
	"github.com/pkg/errors"

	"github.com/torre76/accelhound/codec"
	"github.com/torre76/accelhound/logging"
)

// Private variables (alphabetical)

var logOnce sync.Once

// Private types (alphabetical)

// device owns a libav hardware device context.
type device struct {
	backend codec.Backend
	hdc     *astiav.HardwareDeviceContext
	once    sync.Once
}

// provider lists the codecs compiled into the linked libavcodec.
type provider struct {
	backends    []codec.Backend
	types       map[codec.Backend]astiav.HardwareDeviceType
	codecs      []*codec.Codec
	encoders    map[string]*codec.Codec
	devicePaths map[string]string
}

// Public functions (alphabetical)

// New builds the codec table of the linked libavcodec. devicePaths maps a
// backend to the device node opened for it.
func New(ctx context.Context, devicePaths map[string]string) (codec.Provider, error) {
	logOnce.Do(func() {
		astiav.SetLogLevel(astiav.LogLevelError)
	})

	p := &provider{
		types:       make(map[codec.Backend]astiav.HardwareDeviceType),
		encoders:    make(map[string]*codec.Codec),
		devicePaths: devicePaths,
	}
	for _, name := range deviceTypeNames {
		t := astiav.FindHardwareDeviceTypeByName(name)
		if t == astiav.HardwareDeviceTypeNone {
			continue
		}
		b := codec.Backend(name)
		p.backends = append(p.backends, b)
		p.types[b] = t
	}

	for _, c := range astiav.Codecs() {
		cc := convertCodec(c)
		p.codecs = append(p.codecs, cc)
		if cc.Direction == codec.DirectionEncode {
			if _, dup := p.encoders[cc.Name]; !dup {
				p.encoders[cc.Name] = cc
			}
		}
	}
	if len(p.codecs) == 0 {
		return nil, errors.New("libav: no codecs registered")
	}

	logging.FromContext(ctx).Debug().
		Int("backends", len(p.backends)).
		Int("codecs", len(p.codecs)).
		Msg("libav codec table loaded")
	return p, nil
}

func (p *provider) AllocSession(c *codec.Codec) (codec.Session, error) {
	if c == nil {
		return nil, errors.Wrap(codec.ErrCodecNotFound, "libav: allocate session")
	}
	var av *astiav.Codec
	if c.Direction == codec.DirectionEncode {
		av = astiav.FindEncoderByName(c.Name)
	} else {
		av = astiav.FindDecoderByName(c.Name)
	}
	if av == nil {
		return nil, errors.Wrapf(codec.ErrCodecNotFound, "libav: %s", c.Name)
	}
	return &session{codec: c, av: av}, nil
}

// CreateDevice opens a device context for the backend, using the configured
// device node when there is one.
func (p *provider) CreateDevice(ctx context.Context, b codec.Backend) (codec.Device, error) {
	t, ok := p.types[b]
	if !ok {
		return nil, errors.Wrapf(codec.ErrUnsupported, "libav: unknown backend %s", b)
	}
	hdc, err := astiav.CreateHardwareDeviceContext(t, p.devicePaths[string(b)], nil, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "libav: create %s device", b)
	}
	return &device{backend: b, hdc: hdc}, nil
}

func (p *provider) FindEncoder(name string) (*codec.Codec, bool) {
	c, ok := p.encoders[name]
	return c, ok
}

func (p *provider) Name() string {
	return ProviderName
}

func (p *provider) NextBackend(it *codec.Iterator) (codec.Backend, bool) {
	i := it.Advance()
	if i >= len(p.backends) {
		return codec.BackendNone, false
	}
	return p.backends[i], true
}

func (p *provider) NextCodec(it *codec.Iterator) (*codec.Codec, bool) {
	i := it.Advance()
	if i >= len(p.codecs) {
		return nil, false
	}
	return p.codecs[i], true
}

func (d *device) Backend() codec.Backend {
	return d.backend
}

func (d *device) Close() error {
	d.once.Do(func() {
		d.hdc.Free()
	})
	return nil
}

// Private functions (alphabetical)

// convertCodec maps a libavcodec codec to the shared description. A codec is
// declared hardware backed when it has at least one hardware config.
func convertCodec(c *astiav.Codec) *codec.Codec {
	out := &codec.Codec{
		Name:        c.Name(),
		ID:          codec.ID(c.ID().Name()),
		Kind:        convertMediaType(c.ID().MediaType()),
		Direction:   codec.DirectionDecode,
		Description: c.String(),
	}
	if c.IsEncoder() {
		out.Direction = codec.DirectionEncode
	}

	for _, hc := range c.HardwareConfigs() {
		out.HardwareConfigs = append(out.HardwareConfigs, codec.HardwareConfig{
			Backend: codec.Backend(hc.HardwareDeviceType().String()),
			Methods: convertMethods(hc.MethodFlags()),
		})
	}
	if len(out.HardwareConfigs) > 0 {
		out.Capabilities |= codec.CapHardware
	}
	return out
}

func convertMediaType(t astiav.MediaType) codec.MediaKind {
	switch t {
	case astiav.MediaTypeVideo:
		return codec.MediaKindVideo
	case astiav.MediaTypeAudio:
		return codec.MediaKindAudio
	case astiav.MediaTypeSubtitle:
		return codec.MediaKindSubtitle
	default:
		return codec.MediaKindUnknown
	}
}

func convertMethods(f astiav.CodecHardwareConfigMethodFlags) codec.ConfigMethod {
	var m codec.ConfigMethod
	if f.Has(astiav.CodecHardwareConfigMethodHwDeviceCtx) {
		m |= codec.MethodHWDeviceCtx
	}
	if f.Has(astiav.CodecHardwareConfigMethodHwFramesCtx) {
		m |= codec.MethodHWFramesCtx
	}
	if f.Has(astiav.CodecHardwareConfigMethodInternal) {
		m |= codec.MethodInternal
	}
	if f.Has(astiav.CodecHardwareConfigMethodAdHoc) {
		m |= codec.MethodAdHoc
	}
	return m
}
