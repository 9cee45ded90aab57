package ffmpeg

import (
	"context"

	"github.com/torre76/accelhound/codec"
)

// Private functions (alphabetical)

// verifyDecoder proves that a decoder works with a device by decoding a one
// frame sample. The sample is produced by a software encoder of the same
// format and carried in NUT, which can hold any codec.
func (p *Provider) verifyDecoder(ctx context.Context, c *codec.Codec, dev *device) error {
	encoder, ok := p.swByID[c.ID]
	if !ok {
		return FormatError("verify %s: no software encoder for %s: %w", c.Name, c.ID, codec.ErrUnsupported)
	}

	sample, err := p.run(ctx, nil,
		"-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc=s=320x240:r=1",
		"-frames:v", "1",
		"-c:v", encoder,
		"-f", "nut", "pipe:1",
	)
	if err != nil {
		return FormatError("verify %s: sample encode with %s: %w", c.Name, encoder, err)
	}

	if _, err := p.run(ctx, sample, decodeArgs(c, dev)...); err != nil {
		return FormatError("verify %s: %w", c.Name, err)
	}
	return nil
}

// decodeArgs builds the verification decode of a NUT sample read from
// stdin. With a device, decoded frames must stay in the backend's own
// format, so a silent fallback to software decoding fails the run.
func decodeArgs(c *codec.Codec, dev *device) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if dev != nil {
		args = append(args,
			"-init_hw_device", dev.initArg,
			"-hwaccel", string(dev.backend),
			"-hwaccel_device", deviceName,
			"-hwaccel_output_format", string(dev.backend),
		)
	}
	return append(args,
		"-c:v", c.Name,
		"-f", "nut", "-i", "pipe:0",
		"-f", "null", "-",
	)
}
