package probe

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/torre76/accelhound/codec"
	"github.com/torre76/accelhound/logging"
)

// Public types (alphabetical)

// Enumerator lists codecs and hardware candidates of a provider.
type Enumerator struct {
	provider codec.Provider
	probe    codec.SessionConfig
	workers  int
}

// EnumeratorOption customizes an Enumerator.
type EnumeratorOption func(*Enumerator)

// Public functions (alphabetical)

// NewEnumerator returns an enumerator over p. Verification sessions are
// opened with the default benchmark configuration and backends are probed one
// at a time unless options say otherwise.
func NewEnumerator(p codec.Provider, opts ...EnumeratorOption) *Enumerator {
	e := &Enumerator{
		provider: p,
		probe:    DefaultSettings().SessionConfig(codec.ProfileNone),
		workers:  1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithProbeConfig sets the configuration used to open verification sessions.
func WithProbeConfig(cfg codec.SessionConfig) EnumeratorOption {
	return func(e *Enumerator) {
		e.probe = cfg
	}
}

// WithWorkers sets how many backends are verified concurrently. Each
// backend's device and sessions stay on a single goroutine.
func WithWorkers(n int) EnumeratorOption {
	return func(e *Enumerator) {
		if n > 0 {
			e.workers = n
		}
	}
}

// All returns every codec of the given kind and direction in provider order.
func (e *Enumerator) All(kind codec.MediaKind, dir codec.Direction) []codec.Codec {
	return e.filter(kind, dir, func(*codec.Codec) bool { return true })
}

// Backends returns every backend the provider knows, in provider order.
func (e *Enumerator) Backends() []codec.Backend {
	return codec.Backends(e.provider)
}

// Devices returns the backends whose device context can be created on this
// host. Each device is released immediately.
func (e *Enumerator) Devices(ctx context.Context) []codec.Backend {
	log := logging.FromContext(ctx)
	var out []codec.Backend
	var it codec.Iterator
	for {
		b, ok := e.provider.NextBackend(&it)
		if !ok {
			return out
		}
		dev, err := e.provider.CreateDevice(ctx, b)
		if err != nil {
			log.Debug().Err(err).Str("backend", b.String()).Msg("device unavailable")
			continue
		}
		_ = dev.Close()
		out = append(out, b)
	}
}

// Hardware returns the declared hardware candidates: for each backend, every
// codec that advertises the hardware capability. A codec is listed once per
// backend.
func (e *Enumerator) Hardware(kind codec.MediaKind, dir codec.Direction) []codec.Candidate {
	var out []codec.Candidate
	var bit codec.Iterator
	for {
		b, ok := e.provider.NextBackend(&bit)
		if !ok {
			return out
		}
		var cit codec.Iterator
		for {
			c, ok := e.provider.NextCodec(&cit)
			if !ok {
				break
			}
			if matches(c, kind, dir) && c.IsHardware() {
				out = append(out, codec.Candidate{Codec: *c, Backend: b})
			}
		}
	}
}

// ListCandidates returns the hardware candidates for the kind and direction
// using the requested mode.
func (e *Enumerator) ListCandidates(ctx context.Context, kind codec.MediaKind, dir codec.Direction, mode Mode) []codec.Candidate {
	if mode == ModeDeclared {
		return e.Hardware(kind, dir)
	}
	return e.Verified(ctx, kind, dir)
}

// Software returns the codecs that do not advertise the hardware capability.
func (e *Enumerator) Software(kind codec.MediaKind, dir codec.Direction) []codec.Codec {
	return e.filter(kind, dir, func(c *codec.Codec) bool { return !c.IsHardware() })
}

// Verified returns the candidates whose session could actually be opened
// against a live device of their backend. Backends whose device cannot be
// created and pairs that fail to open are skipped. Results keep backend order
// then codec order regardless of the worker count.
func (e *Enumerator) Verified(ctx context.Context, kind codec.MediaKind, dir codec.Direction) []codec.Candidate {
	backends := e.Backends()
	results := make([][]codec.Candidate, len(backends))

	if e.workers <= 1 {
		for i, b := range backends {
			if ctx.Err() != nil {
				break
			}
			results[i] = e.verifyBackend(ctx, b, kind, dir)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.workers)
		for i, b := range backends {
			g.Go(func() error {
				results[i] = e.verifyBackend(gctx, b, kind, dir)
				return nil
			})
		}
		_ = g.Wait()
	}

	var out []codec.Candidate
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

// Private functions (alphabetical)

func (e *Enumerator) filter(kind codec.MediaKind, dir codec.Direction, keep func(*codec.Codec) bool) []codec.Codec {
	var out []codec.Codec
	var it codec.Iterator
	for {
		c, ok := e.provider.NextCodec(&it)
		if !ok {
			return out
		}
		if matches(c, kind, dir) && keep(c) {
			out = append(out, *c)
		}
	}
}

func matches(c *codec.Codec, kind codec.MediaKind, dir codec.Direction) bool {
	return c.Kind == kind && c.Direction == dir
}

// openOn reports whether a session for c opens while bound to dev.
func (e *Enumerator) openOn(ctx context.Context, c *codec.Codec, dev codec.Device) bool {
	log := logging.FromContext(ctx)

	s, err := e.provider.AllocSession(c)
	if err != nil {
		log.Debug().Err(err).Str("codec", c.Name).Msg("session allocation failed")
		return false
	}
	defer s.Close()

	cfg := e.probe
	cfg.Device = dev
	if err := s.Open(ctx, cfg); err != nil {
		log.Debug().Err(err).
			Str("codec", c.Name).
			Str("backend", dev.Backend().String()).
			Msg("pairing rejected")
		return false
	}
	return true
}

func (e *Enumerator) verifyBackend(ctx context.Context, b codec.Backend, kind codec.MediaKind, dir codec.Direction) []codec.Candidate {
	log := logging.FromContext(ctx)

	dev, err := e.provider.CreateDevice(ctx, b)
	if err != nil {
		log.Debug().Err(err).Str("backend", b.String()).Msg("backend skipped")
		return nil
	}
	defer dev.Close()

	var out []codec.Candidate
	var it codec.Iterator
	for {
		c, ok := e.provider.NextCodec(&it)
		if !ok {
			return out
		}
		if !matches(c, kind, dir) {
			continue
		}
		if _, ok := c.DeviceConfig(b); !ok {
			continue
		}
		if ctx.Err() != nil {
			return out
		}
		if e.openOn(ctx, c, dev) {
			log.Debug().Str("codec", c.Name).Str("backend", b.String()).Msg("pairing verified")
			out = append(out, codec.Candidate{Codec: *c, Backend: b})
		}
	}
}
