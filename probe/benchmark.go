package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/torre76/accelhound/codec"
	"github.com/torre76/accelhound/logging"
)

// Public types (alphabetical)

// Harness measures encoding throughput of single codecs.
type Harness struct {
	provider   codec.Provider
	settings   Settings
	timeout    time.Duration
	bindDevice bool
	now        func() time.Time
}

// HarnessOption customizes a Harness.
type HarnessOption func(*Harness)

// Result is the detailed outcome of one benchmark.
type Result struct {
	// FPS is Frames divided by the elapsed seconds, or 0 when setup failed.
	FPS float64

	// Elapsed is the wall-clock time of the encode loop.
	Elapsed time.Duration

	// FramesSent counts accepted frames.
	FramesSent int

	// Packets counts drained packets.
	Packets int

	// Err is the setup failure, or the reason the loop ended early.
	Err error
}

// Public functions (alphabetical)

// NewHarness returns a harness over p with the default settings.
func NewHarness(p codec.Provider, opts ...HarnessOption) *Harness {
	h := &Harness{
		provider: p,
		settings: DefaultSettings(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// WithClock replaces the wall clock used to time the encode loop.
func WithClock(now func() time.Time) HarnessOption {
	return func(h *Harness) {
		h.now = now
	}
}

// WithDeviceBinding binds benchmark sessions to a device of the candidate's
// backend instead of letting the codec pick its own.
func WithDeviceBinding(enabled bool) HarnessOption {
	return func(h *Harness) {
		h.bindDevice = enabled
	}
}

// WithSettings replaces the benchmark settings.
func WithSettings(s Settings) HarnessOption {
	return func(h *Harness) {
		h.settings = s
	}
}

// WithTimeout bounds each benchmark. Zero disables the watchdog.
func WithTimeout(d time.Duration) HarnessOption {
	return func(h *Harness) {
		h.timeout = d
	}
}

// Measure returns the encoding throughput of the named encoder in frames per
// second, or 0 when the encoder is unknown or cannot be set up.
func (h *Harness) Measure(ctx context.Context, name string, profile codec.ContentProfile) float64 {
	return h.Run(ctx, name, codec.BackendNone, profile).FPS
}

// Run benchmarks the named encoder and reports the details. The backend is
// only used when device binding is enabled.
func (h *Harness) Run(ctx context.Context, name string, backend codec.Backend, profile codec.ContentProfile) Result {
	log := logging.FromContext(ctx).With().Str("codec", name).Str("profile", profile.String()).Logger()

	c, ok := h.provider.FindEncoder(name)
	if !ok {
		log.Debug().Msg("encoder not found")
		return Result{Err: fmt.Errorf("%s: %w", name, codec.ErrCodecNotFound)}
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	cfg := h.settings.SessionConfig(profile)
	if h.bindDevice && backend != codec.BackendNone {
		dev, err := h.provider.CreateDevice(ctx, backend)
		if err != nil {
			log.Debug().Err(err).Str("backend", backend.String()).Msg("device binding failed")
			return Result{Err: err}
		}
		defer dev.Close()
		cfg.Device = dev
	}

	s, err := h.provider.AllocSession(c)
	if err != nil {
		log.Debug().Err(err).Msg("session allocation failed")
		return Result{Err: err}
	}
	defer s.Close()

	if err := s.Open(ctx, cfg); err != nil {
		log.Debug().Err(err).Msg("session open failed")
		return Result{Err: err}
	}

	frame, err := s.AllocFrame()
	if err != nil {
		log.Debug().Err(err).Msg("frame allocation failed")
		return Result{Err: err}
	}
	pkt, err := s.AllocPacket()
	if err != nil {
		log.Debug().Err(err).Msg("packet allocation failed")
		return Result{Err: err}
	}

	res := h.encodeLoop(ctx, s, frame, pkt)
	if res.Err != nil {
		log.Debug().Err(res.Err).Int("frames_sent", res.FramesSent).Msg("encode loop aborted")
	}
	log.Debug().Float64("fps", res.FPS).Dur("elapsed", res.Elapsed).Msg("benchmark finished")
	return res
}

// Private functions (alphabetical)

// encodeLoop submits the synthetic frames and drains output after each one.
// The rate is always computed over the configured frame count, even when the
// loop ends early.
func (h *Harness) encodeLoop(ctx context.Context, s codec.Session, frame *codec.Frame, pkt *codec.Packet) Result {
	var res Result
	start := h.now()

loop:
	for i := 0; i < h.settings.Frames; i++ {
		if err := ctx.Err(); err != nil {
			res.Err = err
			break
		}

		FillFrame(frame, i)
		frame.PTS = int64(i)
		if err := s.SendFrame(frame); err != nil {
			res.Err = fmt.Errorf("frame %d rejected: %w", i, err)
			break
		}
		res.FramesSent++

		for {
			err := s.ReceivePacket(pkt)
			if errors.Is(err, codec.ErrWouldBlock) || errors.Is(err, codec.ErrEndOfStream) {
				break
			}
			if err != nil {
				res.Err = fmt.Errorf("drain after frame %d: %w", i, err)
				break loop
			}
			res.Packets++
			pkt.Unref()
		}
	}

	res.Elapsed = h.now().Sub(start)
	if res.Elapsed <= 0 {
		res.Elapsed = time.Nanosecond
	}
	res.FPS = float64(h.settings.Frames) / res.Elapsed.Seconds()
	return res
}
