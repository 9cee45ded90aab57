//go:build libav

package libav

import (
	"context"
	"errors"
	"strconv"

	"github.com/asticode/go-astiav"
	pkgerrors "github.com/pkg/errors"

	"github.com/torre76/accelhound/codec"
)

// Private types (alphabetical)

// session wraps a libavcodec context. Go frames are copied into one reusable
// libav frame on every SendFrame; that frame and the libav packet are
// allocated by AllocFrame and AllocPacket.
type session struct {
	codec  *codec.Codec
	av     *astiav.Codec
	cc     *astiav.CodecContext
	frame  *astiav.Frame
	pkt    *astiav.Packet
	cfg    codec.SessionConfig
	opened bool
	closed bool
}

// AllocFrame also allocates the libav frame and its buffer that SendFrame
// copies into, so allocation failures surface before any frame is sent.
func (s *session) AllocFrame() (*codec.Frame, error) {
	if !s.opened {
		return nil, codec.ErrSessionNotOpen
	}
	f, err := codec.NewFrame(s.cfg.Width, s.cfg.Height, s.cfg.PixelFormat)
	if err != nil {
		return nil, err
	}
	if s.codec.Direction != codec.DirectionEncode || s.frame != nil {
		return f, nil
	}

	frame := astiav.AllocFrame()
	if frame == nil {
		return nil, pkgerrors.New("libav: allocate frame")
	}
	frame.SetWidth(s.cfg.Width)
	frame.SetHeight(s.cfg.Height)
	frame.SetPixelFormat(s.cc.PixelFormat())
	if err := frame.AllocBuffer(1); err != nil {
		frame.Free()
		return nil, pkgerrors.Wrap(err, "libav: allocate frame buffer")
	}
	s.frame = frame
	return f, nil
}

// AllocPacket also allocates the libav packet ReceivePacket reads into.
func (s *session) AllocPacket() (*codec.Packet, error) {
	if s.closed {
		return nil, codec.ErrSessionClosed
	}
	if s.pkt == nil {
		if s.pkt = astiav.AllocPacket(); s.pkt == nil {
			return nil, pkgerrors.New("libav: allocate packet")
		}
	}
	return &codec.Packet{}, nil
}

func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.pkt != nil {
		s.pkt.Free()
	}
	if s.frame != nil {
		s.frame.Free()
	}
	if s.cc != nil {
		s.cc.Free()
	}
	return nil
}

// Open configures the codec context and opens it. Decoders only need the
// device binding; encoders get the full geometry, rate control and color
// configuration.
func (s *session) Open(ctx context.Context, cfg codec.SessionConfig) error {
	if s.closed {
		return codec.ErrSessionClosed
	}
	if s.opened {
		return pkgerrors.Errorf("libav: %s already open", s.codec.Name)
	}

	s.cc = astiav.AllocCodecContext(s.av)
	if s.cc == nil {
		return pkgerrors.Errorf("libav: allocate context for %s", s.codec.Name)
	}
	if cfg.Device != nil {
		d, ok := cfg.Device.(*device)
		if !ok {
			return pkgerrors.Wrapf(codec.ErrUnsupported, "libav: device %T was not created by this provider", cfg.Device)
		}
		s.cc.SetHardwareDeviceContext(d.hdc)
	}

	var opts *astiav.Dictionary
	if s.codec.Direction == codec.DirectionEncode {
		pixFmt := astiav.FindPixelFormatByName(string(cfg.PixelFormat))
		if pixFmt == astiav.PixelFormatNone {
			return pkgerrors.Errorf("libav: unknown pixel format %s", cfg.PixelFormat)
		}
		s.cc.SetWidth(cfg.Width)
		s.cc.SetHeight(cfg.Height)
		s.cc.SetPixelFormat(pixFmt)
		s.cc.SetBitRate(cfg.BitRate)
		s.cc.SetTimeBase(astiav.NewRational(cfg.TimeBase.Num, cfg.TimeBase.Den))
		s.cc.SetFramerate(astiav.NewRational(cfg.FrameRate.Num, cfg.FrameRate.Den))

		var err error
		if opts, err = encoderOptions(cfg); err != nil {
			return err
		}
		defer opts.Free()
	}

	if err := s.cc.Open(s.av, opts); err != nil {
		return pkgerrors.Wrapf(err, "libav: open %s", s.codec.Name)
	}
	s.cfg, s.opened = cfg, true
	return nil
}

// ReceivePacket maps EAGAIN and EOF to the shared sentinels and copies the
// payload out of the libav packet.
func (s *session) ReceivePacket(pkt *codec.Packet) error {
	if !s.opened {
		return codec.ErrSessionNotOpen
	}
	if s.pkt == nil {
		return pkgerrors.Wrap(codec.ErrSessionNotOpen, "libav: packet not allocated")
	}

	if err := s.cc.ReceivePacket(s.pkt); err != nil {
		switch {
		case errors.Is(err, astiav.ErrEagain):
			return codec.ErrWouldBlock
		case errors.Is(err, astiav.ErrEof):
			return codec.ErrEndOfStream
		default:
			return pkgerrors.Wrapf(err, "libav: receive from %s", s.codec.Name)
		}
	}
	defer s.pkt.Unref()

	data := s.pkt.Data()
	*pkt = codec.Packet{
		Data:     append(pkt.Data[:0], data...),
		PTS:      s.pkt.Pts(),
		Size:     len(data),
		KeyFrame: s.pkt.Flags().Has(astiav.PacketFlagKey),
	}
	return nil
}

func (s *session) SendFrame(f *codec.Frame) error {
	if s.closed {
		return codec.ErrSessionClosed
	}
	if !s.opened {
		return codec.ErrSessionNotOpen
	}
	if s.codec.Direction != codec.DirectionEncode {
		return codec.ErrUnsupported
	}

	if s.frame == nil {
		return pkgerrors.Wrap(codec.ErrSessionNotOpen, "libav: frame not allocated")
	}
	if err := s.frame.MakeWritable(); err != nil {
		return pkgerrors.Wrap(err, "libav: make frame writable")
	}
	if err := s.frame.Data().SetBytes(f.Bytes(), 1); err != nil {
		return pkgerrors.Wrap(err, "libav: copy frame")
	}
	s.frame.SetPts(f.PTS)

	if err := s.cc.SendFrame(s.frame); err != nil {
		return pkgerrors.Wrapf(err, "libav: send frame %d to %s", f.PTS, s.codec.Name)
	}
	return nil
}

// Private functions (alphabetical)

// encoderOptions carries the settings without dedicated setters.
func encoderOptions(cfg codec.SessionConfig) (*astiav.Dictionary, error) {
	d := astiav.NewDictionary()
	set := map[string]string{
		"g":  strconv.Itoa(cfg.GOPSize),
		"bf": strconv.Itoa(cfg.MaxBFrames),
	}
	if cfg.Color != nil {
		set["color_primaries"] = string(cfg.Color.Primaries)
		set["color_trc"] = string(cfg.Color.Transfer)
		set["colorspace"] = string(cfg.Color.Space)
	}
	for k, v := range set {
		if err := d.Set(k, v, astiav.NewDictionaryFlags()); err != nil {
			d.Free()
			return nil, pkgerrors.Wrapf(err, "libav: option %s", k)
		}
	}
	return d, nil
}
