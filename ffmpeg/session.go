package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"

	"github.com/torre76/accelhound/codec"
)

// Private constants (alphabetical)
const (
	// packetBacklog is the number of parsed packets buffered between the
	// stdout reader and ReceivePacket.
	packetBacklog = 64
)

// Private variables (alphabetical)

// uploadBackends are backends whose encoders only accept frames that live
// on the device, so raw input is uploaded first.
var uploadBackends = map[codec.Backend]bool{
	"d3d12va": true,
	"qsv":     true,
	"vaapi":   true,
	"vulkan":  true,
}

// Private types (alphabetical)

// session is an ffmpeg backed codec session. Encoders stream raw frames to
// a child process, started by Open, that writes one framecrc line per packet;
// decoders only support Open, which verifies the decoder against its device.
type session struct {
	provider *Provider
	codec    *codec.Codec
	cfg      codec.SessionConfig
	dev      *device
	ctx      context.Context
	opened   bool
	closed   bool

	cmd      *exec.Cmd
	cancel   context.CancelFunc
	stdin    io.WriteCloser
	stderr   *tailBuffer
	packets  chan codec.Packet
	quit     chan struct{}
	finished chan struct{}
	waitErr  error
}

// Private functions (alphabetical)

// encodeArgs builds the encoder side of the command line: device setup,
// optional upload filter, codec options and color tags.
func encodeArgs(c *codec.Codec, cfg codec.SessionConfig, dev *device) (pre []string, post []string) {
	if dev != nil {
		pre = append(pre, "-init_hw_device", dev.initArg)
	}

	post = append(post, "-c:v", c.Name)
	if dev != nil && uploadBackends[dev.backend] {
		upload := "nv12"
		if cfg.PixelFormat.BitDepth() > 8 {
			upload = "p010le"
		}
		post = append(post, "-filter_hw_device", deviceName, "-vf", "format="+upload+",hwupload")
	} else {
		post = append(post, "-pix_fmt", string(cfg.PixelFormat))
	}

	post = append(post,
		"-b:v", strconv.FormatInt(cfg.BitRate, 10),
		"-g", strconv.Itoa(cfg.GOPSize),
		"-bf", strconv.Itoa(cfg.MaxBFrames),
	)
	if cfg.Color != nil {
		post = append(post,
			"-color_primaries", string(cfg.Color.Primaries),
			"-color_trc", string(cfg.Color.Transfer),
			"-colorspace", string(cfg.Color.Space),
		)
	}
	return pre, post
}

func (s *session) AllocFrame() (*codec.Frame, error) {
	if !s.opened {
		return nil, codec.ErrSessionNotOpen
	}
	return codec.NewFrame(s.cfg.Width, s.cfg.Height, s.cfg.PixelFormat)
}

func (s *session) AllocPacket() (*codec.Packet, error) {
	if s.closed {
		return nil, codec.ErrSessionClosed
	}
	return &codec.Packet{}, nil
}

// Close ends the child process. Closing stdin lets ffmpeg flush and exit;
// the process is killed if it does not exit within the default timeout.
func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.cmd == nil {
		return nil
	}

	close(s.quit)
	_ = s.stdin.Close()
	select {
	case <-s.finished:
	case <-time.After(GetDefaultTimeout()):
		s.cancel()
		<-s.finished
	}
	s.cancel()
	return nil
}

// Open validates the configuration, runs a one frame preflight encode with
// the same options and starts the streaming process. A child that exits
// within startGrace fails Open, so an unusable codec fails here rather than
// mid-stream.
func (s *session) Open(ctx context.Context, cfg codec.SessionConfig) error {
	if s.closed {
		return codec.ErrSessionClosed
	}
	dev, err := deviceFor(cfg)
	if err != nil {
		return err
	}

	if s.codec.Direction == codec.DirectionDecode {
		if err := s.provider.verifyDecoder(ctx, s.codec, dev); err != nil {
			return err
		}
		s.cfg, s.dev, s.ctx, s.opened = cfg, dev, ctx, true
		return nil
	}

	if cfg.Width <= 0 || cfg.Height <= 0 || !cfg.PixelFormat.Valid() {
		return FormatError("open %s: invalid configuration %dx%d %s", s.codec.Name, cfg.Width, cfg.Height, cfg.PixelFormat)
	}

	pre, post := encodeArgs(s.codec, cfg, dev)
	args := append([]string{"-hide_banner", "-loglevel", "error"}, pre...)
	args = append(args,
		"-f", "lavfi",
		"-i", fmt.Sprintf("nullsrc=s=%dx%d:r=%d", cfg.Width, cfg.Height, frameRate(cfg)),
		"-frames:v", "1",
	)
	args = append(args, post...)
	args = append(args, "-f", "null", "-")
	if _, err := s.provider.run(ctx, nil, args...); err != nil {
		return FormatError("open %s: %w", s.codec.Name, err)
	}

	s.cfg, s.dev, s.ctx = cfg, dev, ctx
	if err := s.start(); err != nil {
		return FormatError("open %s: %w", s.codec.Name, err)
	}
	s.opened = true
	return nil
}

// exitError describes a streaming child that is no longer running.
func (s *session) exitError() error {
	if s.waitErr != nil {
		return FormatError("%s exited: %w%s", s.codec.Name, s.waitErr, s.stderr.suffix())
	}
	return FormatError("%s exited early%s", s.codec.Name, s.stderr.suffix())
}

// ReceivePacket returns the next parsed packet without blocking.
func (s *session) ReceivePacket(pkt *codec.Packet) error {
	if !s.opened {
		return codec.ErrSessionNotOpen
	}
	if s.codec.Direction == codec.DirectionDecode {
		return codec.ErrUnsupported
	}

	select {
	case p, ok := <-s.packets:
		if !ok {
			if s.waitErr != nil {
				return s.exitError()
			}
			return codec.ErrEndOfStream
		}
		*pkt = p
		return nil
	default:
		return codec.ErrWouldBlock
	}
}

// readPackets turns framecrc lines into packets until stdout closes, then
// reaps the process.
func (s *session) readPackets(stdout io.Reader) {
	defer close(s.finished)

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		pkt, ok := parseFrameCRC(scanner.Text())
		if !ok {
			continue
		}
		select {
		case s.packets <- pkt:
		case <-s.quit:
		}
	}
	// Drain anything left so the child never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, stdout)

	s.waitErr = s.cmd.Wait()
	close(s.packets)
}

// SendFrame writes one packed frame to the child's stdin. A child that has
// exited or a failed write means the encoder rejected the frame.
func (s *session) SendFrame(f *codec.Frame) error {
	if s.closed {
		return codec.ErrSessionClosed
	}
	if !s.opened {
		return codec.ErrSessionNotOpen
	}
	if s.codec.Direction == codec.DirectionDecode {
		return codec.ErrUnsupported
	}
	if f.Width != s.cfg.Width || f.Height != s.cfg.Height || f.Format != s.cfg.PixelFormat {
		return FormatError("frame %dx%d %s does not match session %dx%d %s",
			f.Width, f.Height, f.Format, s.cfg.Width, s.cfg.Height, s.cfg.PixelFormat)
	}
	select {
	case <-s.finished:
		return s.exitError()
	default:
	}

	if _, err := s.stdin.Write(f.Bytes()); err != nil {
		return FormatError("write frame %d to %s: %w%s", f.PTS, s.codec.Name, err, s.stderr.suffix())
	}
	return nil
}

// start launches the streaming process, raw video on stdin and framecrc on
// stdout, then watches it for startGrace.
func (s *session) start() error {
	pre, post := encodeArgs(s.codec, s.cfg, s.dev)
	args := append([]string{"-hide_banner", "-loglevel", "error"}, pre...)
	args = append(args,
		"-f", "rawvideo",
		"-pix_fmt", string(s.cfg.PixelFormat),
		"-video_size", fmt.Sprintf("%dx%d", s.cfg.Width, s.cfg.Height),
		"-framerate", strconv.Itoa(frameRate(s.cfg)),
		"-i", "pipe:0",
	)
	args = append(args, post...)
	args = append(args, "-f", "framecrc", "pipe:1")

	ctx, cancel := context.WithCancel(s.ctx)
	cmd := exec.CommandContext(ctx, s.provider.info.Path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return FormatError("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return FormatError("stdout pipe: %w", err)
	}
	s.stderr = newTailBuffer(stderrLimit)
	cmd.Stderr = s.stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return FormatError("start %s: %w", s.codec.Name, err)
	}

	s.cmd, s.cancel, s.stdin = cmd, cancel, stdin
	s.packets = make(chan codec.Packet, packetBacklog)
	s.quit = make(chan struct{})
	s.finished = make(chan struct{})
	go s.readPackets(stdout)

	select {
	case <-s.finished:
		return s.exitError()
	case <-s.ctx.Done():
		return s.ctx.Err()
	case <-time.After(startGrace):
		return nil
	}
}

// frameRate returns the integral frame rate of a configuration, defaulting
// to 30 when the rate is unset.
func frameRate(cfg codec.SessionConfig) int {
	if cfg.FrameRate.Num <= 0 || cfg.FrameRate.Den <= 0 {
		return 30
	}
	if r := cfg.FrameRate.Num / cfg.FrameRate.Den; r > 0 {
		return r
	}
	return 1
}
