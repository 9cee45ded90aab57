// Package codectest provides an in-memory codec.Provider for tests. Every
// device and session it hands out is counted, so tests can assert that all
// acquisitions were released, and each codec can be scripted to fail at a
// specific step.
package codectest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/torre76/accelhound/codec"
)

// Public variables (alphabetical)

// ErrInjected is the default error returned by scripted failures.
var ErrInjected = errors.New("injected failure")

// Public types (alphabetical)

// Behavior scripts how sessions of one codec behave.
type Behavior struct {
	// OpenErr is returned by Open.
	OpenErr error

	// OpenErrOn is returned by Open only when bound to one of these backends.
	OpenErrOn map[codec.Backend]error

	// FrameErr is returned by AllocFrame.
	FrameErr error

	// PacketErr is returned by AllocPacket.
	PacketErr error

	// RejectAfter rejects every frame once this many frames were accepted.
	// Zero never rejects.
	RejectAfter int

	// DrainErr is returned by ReceivePacket instead of the first packet.
	DrainErr error

	// Latency is the number of frames held back before packets appear.
	Latency int

	// SendDelay is slept on every accepted frame.
	SendDelay time.Duration
}

// Provider is a scriptable in-memory provider.
type Provider struct {
	// ProviderName is returned by Name. It defaults to "null".
	ProviderName string

	// BackendList is the ordered list of backends.
	BackendList []codec.Backend

	// CodecList is the ordered codec table.
	CodecList []*codec.Codec

	// DeviceErrs makes CreateDevice fail for a backend.
	DeviceErrs map[codec.Backend]error

	// Behaviors scripts sessions per codec name.
	Behaviors map[string]Behavior

	// Record keeps a copy of every submitted frame.
	Record bool

	mu           sync.Mutex
	liveDevices  int
	liveSessions int
	opened       []codec.Candidate
	configs      map[string]codec.SessionConfig
	submitted    map[string][][]byte
	sent         map[string]int
}

// Public functions (alphabetical)

// HardwareEncoder builds a video encoder codec that declares the hardware
// capability and a device-context descriptor for each backend.
func HardwareEncoder(name string, id codec.ID, backends ...codec.Backend) *codec.Codec {
	c := &codec.Codec{
		Name:         name,
		ID:           id,
		Kind:         codec.MediaKindVideo,
		Direction:    codec.DirectionEncode,
		Capabilities: codec.CapHardware,
	}
	for _, b := range backends {
		c.HardwareConfigs = append(c.HardwareConfigs, codec.HardwareConfig{
			Backend: b,
			Methods: codec.MethodHWDeviceCtx,
		})
	}
	return c
}

// SoftwareEncoder builds a video encoder codec without hardware support.
func SoftwareEncoder(name string, id codec.ID) *codec.Codec {
	return &codec.Codec{
		Name:      name,
		ID:        id,
		Kind:      codec.MediaKindVideo,
		Direction: codec.DirectionEncode,
	}
}

// AllocSession implements codec.Provider.
func (p *Provider) AllocSession(c *codec.Codec) (codec.Session, error) {
	if c == nil {
		return nil, codec.ErrCodecNotFound
	}
	p.mu.Lock()
	p.liveSessions++
	p.mu.Unlock()
	return &session{provider: p, codec: c, behavior: p.Behaviors[c.Name]}, nil
}

// CreateDevice implements codec.Provider.
func (p *Provider) CreateDevice(ctx context.Context, b codec.Backend) (codec.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := p.DeviceErrs[b]; ok {
		return nil, fmt.Errorf("create %s device: %w", b, err)
	}
	p.mu.Lock()
	p.liveDevices++
	p.mu.Unlock()
	return &device{provider: p, backend: b}, nil
}

// FindEncoder implements codec.Provider.
func (p *Provider) FindEncoder(name string) (*codec.Codec, bool) {
	for _, c := range p.CodecList {
		if c.Name == name && c.Direction == codec.DirectionEncode {
			return c, true
		}
	}
	return nil, false
}

// LastConfig returns the configuration the codec was last opened with.
func (p *Provider) LastConfig(name string) (codec.SessionConfig, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cfg, ok := p.configs[name]
	return cfg, ok
}

// LiveDevices returns the number of devices not yet closed.
func (p *Provider) LiveDevices() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.liveDevices
}

// LiveSessions returns the number of sessions not yet closed.
func (p *Provider) LiveSessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.liveSessions
}

// Name implements codec.Provider.
func (p *Provider) Name() string {
	if p.ProviderName == "" {
		return "null"
	}
	return p.ProviderName
}

// NextBackend implements codec.Provider.
func (p *Provider) NextBackend(it *codec.Iterator) (codec.Backend, bool) {
	i := it.Advance()
	if i >= len(p.BackendList) {
		return codec.BackendNone, false
	}
	return p.BackendList[i], true
}

// NextCodec implements codec.Provider.
func (p *Provider) NextCodec(it *codec.Iterator) (*codec.Codec, bool) {
	i := it.Advance()
	if i >= len(p.CodecList) {
		return nil, false
	}
	return p.CodecList[i], true
}

// Opened returns every successful open in order, with the bound backend.
func (p *Provider) Opened() []codec.Candidate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]codec.Candidate(nil), p.opened...)
}

// Sent returns how many frames were accepted for the codec.
func (p *Provider) Sent(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent[name]
}

// Submitted returns copies of the frames submitted to the codec when Record
// is set.
func (p *Provider) Submitted(name string) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.submitted[name]
}

// Private types (alphabetical)

type device struct {
	provider *Provider
	backend  codec.Backend
	closed   bool
}

type session struct {
	provider *Provider
	codec    *codec.Codec
	behavior Behavior
	cfg      codec.SessionConfig
	opened   bool
	closed   bool
	accepted int
	pending  int
	emitted  int
	drained  bool
}

// Private functions (alphabetical)

func (d *device) Backend() codec.Backend {
	return d.backend
}

func (d *device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.provider.mu.Lock()
	d.provider.liveDevices--
	d.provider.mu.Unlock()
	return nil
}

func (s *session) AllocFrame() (*codec.Frame, error) {
	if !s.opened {
		return nil, codec.ErrSessionNotOpen
	}
	if s.behavior.FrameErr != nil {
		return nil, s.behavior.FrameErr
	}
	return codec.NewFrame(s.cfg.Width, s.cfg.Height, s.cfg.PixelFormat)
}

func (s *session) AllocPacket() (*codec.Packet, error) {
	if s.behavior.PacketErr != nil {
		return nil, s.behavior.PacketErr
	}
	return &codec.Packet{}, nil
}

func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.provider.mu.Lock()
	s.provider.liveSessions--
	s.provider.mu.Unlock()
	return nil
}

func (s *session) Open(ctx context.Context, cfg codec.SessionConfig) error {
	if s.closed {
		return codec.ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	backend := codec.BackendNone
	if cfg.Device != nil {
		backend = cfg.Device.Backend()
	}
	if err, ok := s.behavior.OpenErrOn[backend]; ok {
		return err
	}
	if s.behavior.OpenErr != nil {
		return s.behavior.OpenErr
	}

	s.cfg = cfg
	s.opened = true
	s.provider.mu.Lock()
	if s.provider.configs == nil {
		s.provider.configs = make(map[string]codec.SessionConfig)
	}
	s.provider.configs[s.codec.Name] = cfg
	s.provider.opened = append(s.provider.opened, codec.Candidate{Codec: *s.codec, Backend: backend})
	s.provider.mu.Unlock()
	return nil
}

func (s *session) ReceivePacket(pkt *codec.Packet) error {
	if !s.opened {
		return codec.ErrSessionNotOpen
	}
	if s.pending == 0 {
		return codec.ErrWouldBlock
	}
	if s.behavior.DrainErr != nil && !s.drained {
		s.drained = true
		return s.behavior.DrainErr
	}
	s.pending--
	pkt.PTS = int64(s.emitted)
	s.emitted++
	pkt.Size = 1
	pkt.Data = append(pkt.Data[:0], 0)
	return nil
}

func (s *session) SendFrame(f *codec.Frame) error {
	if !s.opened {
		return codec.ErrSessionNotOpen
	}
	if s.behavior.RejectAfter > 0 && s.accepted >= s.behavior.RejectAfter {
		return ErrInjected
	}
	if s.behavior.SendDelay > 0 {
		time.Sleep(s.behavior.SendDelay)
	}
	s.accepted++
	if s.accepted > s.behavior.Latency {
		s.pending++
	}

	s.provider.mu.Lock()
	if s.provider.sent == nil {
		s.provider.sent = make(map[string]int)
	}
	s.provider.sent[s.codec.Name]++
	if s.provider.Record {
		if s.provider.submitted == nil {
			s.provider.submitted = make(map[string][][]byte)
		}
		s.provider.submitted[s.codec.Name] = append(s.provider.submitted[s.codec.Name], append([]byte(nil), f.Bytes()...))
	}
	s.provider.mu.Unlock()
	return nil
}
