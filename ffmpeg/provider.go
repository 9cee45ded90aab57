package ffmpeg

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/torre76/accelhound/codec"
	"github.com/torre76/accelhound/logging"
)

// Public types (alphabetical)

// Option customizes a Provider.
type Option func(*Provider)

// Public functions (alphabetical)

// NewProvider reads the hardware acceleration methods and the codec tables
// of the ffmpeg executable described by info. Help pages of hardware capable
// codecs are queried concurrently and the result is cached for the lifetime
// of the provider.
func NewProvider(ctx context.Context, info *FFmpegInfo, opts ...Option) (*Provider, error) {
	if info == nil || !info.Installed {
		return nil, FormatError("FFmpeg is not installed")
	}

	p := &Provider{
		info:     info,
		encoders: make(map[string]*codec.Codec),
		devices:  make(map[codec.Backend]string),
		swByID:   make(map[codec.ID]string),
	}
	for _, opt := range opts {
		opt(p)
	}

	out, err := p.run(ctx, nil, "-hide_banner", "-hwaccels")
	if err != nil {
		return nil, err
	}
	p.backends = parseHWAccels(string(out))

	for _, dir := range []codec.Direction{codec.DirectionEncode, codec.DirectionDecode} {
		if err := p.loadCodecs(ctx, dir); err != nil {
			return nil, err
		}
	}

	for _, c := range p.codecs {
		if c.Direction != codec.DirectionEncode {
			continue
		}
		p.encoders[c.Name] = c
		if _, ok := p.swByID[c.ID]; !ok && c.Kind == codec.MediaKindVideo && len(c.HardwareConfigs) == 0 && c.Capabilities&codec.CapExperimental == 0 {
			p.swByID[c.ID] = c.Name
		}
	}

	logging.FromContext(ctx).Debug().
		Int("backends", len(p.backends)).
		Int("codecs", len(p.codecs)).
		Str("ffmpeg", info.Path).
		Msg("ffmpeg codec table loaded")
	return p, nil
}

// WithDevicePaths sets the device node used for a backend, e.g.
// {"vaapi": "/dev/dri/renderD128"}.
func WithDevicePaths(paths map[string]string) Option {
	return func(p *Provider) {
		for b, path := range paths {
			if path != "" {
				p.devices[codec.Backend(b)] = path
			}
		}
	}
}

// AllocSession implements codec.Provider.
func (p *Provider) AllocSession(c *codec.Codec) (codec.Session, error) {
	if c == nil {
		return nil, FormatError("allocate session: %w", codec.ErrCodecNotFound)
	}
	return &session{provider: p, codec: c}, nil
}

// FindEncoder implements codec.Provider.
func (p *Provider) FindEncoder(name string) (*codec.Codec, bool) {
	c, ok := p.encoders[name]
	return c, ok
}

// Info returns the detected installation.
func (p *Provider) Info() *FFmpegInfo {
	return p.info
}

// Name implements codec.Provider.
func (p *Provider) Name() string {
	return ProviderName
}

// NextBackend implements codec.Provider.
func (p *Provider) NextBackend(it *codec.Iterator) (codec.Backend, bool) {
	i := it.Advance()
	if i >= len(p.backends) {
		return codec.BackendNone, false
	}
	return p.backends[i], true
}

// NextCodec implements codec.Provider.
func (p *Provider) NextCodec(it *codec.Iterator) (*codec.Codec, bool) {
	i := it.Advance()
	if i >= len(p.codecs) {
		return nil, false
	}
	return p.codecs[i], true
}

// Version returns the detected ffmpeg version.
func (p *Provider) Version() string {
	return p.info.Version
}

// Private functions (alphabetical)

// loadCodecs lists the codecs of one direction and resolves the hardware
// descriptors of those that may have any.
func (p *Provider) loadCodecs(ctx context.Context, dir codec.Direction) error {
	listFlag, helpKind := "-encoders", "encoder"
	if dir == codec.DirectionDecode {
		listFlag, helpKind = "-decoders", "decoder"
	}

	out, err := p.run(ctx, nil, "-hide_banner", listFlag)
	if err != nil {
		return err
	}
	entries := parseCodecList(string(out))

	helps := make([]codecHelp, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(helpWorkers)
	for i, e := range entries {
		if !needsHelp(e, dir) {
			continue
		}
		g.Go(func() error {
			out, err := p.run(gctx, nil, "-hide_banner", "-h", helpKind+"="+e.name)
			if err != nil {
				logging.FromContext(ctx).Debug().Err(err).Str("codec", e.name).Msg("help query failed")
				return nil
			}
			helps[i] = parseCodecHelp(string(out))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, e := range entries {
		p.codecs = append(p.codecs, buildCodec(e, dir, helps[i]))
	}
	return nil
}

// buildCodec merges a list row with its help page.
func buildCodec(e listEntry, dir codec.Direction, help codecHelp) *codec.Codec {
	c := &codec.Codec{
		Name:        e.name,
		ID:          e.id,
		Kind:        e.kind,
		Direction:   dir,
		Description: e.description,
	}
	if e.experimental {
		c.Capabilities |= codec.CapExperimental
	}
	for _, word := range help.capabilities {
		switch strings.ToLower(word) {
		case "hardware":
			c.Capabilities |= codec.CapHardware
		case "hybrid":
			c.Capabilities |= codec.CapHybrid
		}
	}
	// The help page names devices but not methods; ffmpeg can only hand a
	// codec a device through a device context, so that is what is recorded.
	for _, b := range help.devices {
		c.HardwareConfigs = append(c.HardwareConfigs, codec.HardwareConfig{
			Backend: b,
			Methods: codec.MethodHWDeviceCtx,
		})
	}
	return c
}
