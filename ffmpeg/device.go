package ffmpeg

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/torre76/accelhound/codec"
)

// Private types (alphabetical)

// device is a hardware device proven usable by ffmpeg. ffmpeg creates the
// real device context inside each child process, so this value only carries
// the -init_hw_device argument.
type device struct {
	backend codec.Backend
	initArg string
	closed  atomic.Bool
}

// Public functions (alphabetical)

// CreateDevice implements codec.Provider. The device is proven by
// initializing it in a one frame null encode.
func (p *Provider) CreateDevice(ctx context.Context, b codec.Backend) (codec.Device, error) {
	initArg := p.deviceInitArg(b)
	_, err := p.run(ctx, nil,
		"-hide_banner", "-loglevel", "error",
		"-init_hw_device", initArg,
		"-f", "lavfi", "-i", "nullsrc=s=64x64:r=1",
		"-frames:v", "1",
		"-f", "null", "-",
	)
	if err != nil {
		return nil, FormatError("create %s device: %w", b, err)
	}
	return &device{backend: b, initArg: initArg}, nil
}

// Backend implements codec.Device.
func (d *device) Backend() codec.Backend {
	return d.backend
}

// Close implements codec.Device.
func (d *device) Close() error {
	d.closed.Store(true)
	return nil
}

// Private functions (alphabetical)

// deviceFor extracts this provider's device from a session configuration.
func deviceFor(cfg codec.SessionConfig) (*device, error) {
	if cfg.Device == nil {
		return nil, nil
	}
	d, ok := cfg.Device.(*device)
	if !ok {
		return nil, FormatError("device %T was not created by this provider: %w", cfg.Device, codec.ErrUnsupported)
	}
	if d.closed.Load() {
		return nil, FormatError("%s device already released", d.backend)
	}
	return d, nil
}

// deviceInitArg builds the -init_hw_device argument for a backend.
func (p *Provider) deviceInitArg(b codec.Backend) string {
	initArg := fmt.Sprintf("%s=%s", b, deviceName)
	if path := p.devices[b]; path != "" {
		initArg += ":" + path
	}
	return initArg
}
