package codec

import (
	"context"
	"errors"
)

// Public variables (alphabetical)

var (
	// ErrCodecNotFound is returned when a codec name is unknown to a provider.
	ErrCodecNotFound = errors.New("codec not found")

	// ErrEndOfStream is returned by ReceivePacket once the session is fully
	// drained and will produce no more output.
	ErrEndOfStream = errors.New("end of stream")

	// ErrSessionClosed is returned when a closed session is used.
	ErrSessionClosed = errors.New("session closed")

	// ErrSessionNotOpen is returned when a session is used before Open.
	ErrSessionNotOpen = errors.New("session not open")

	// ErrUnsupported is returned for operations a provider cannot perform.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrWouldBlock is returned by ReceivePacket when no output is ready yet
	// and more input is required.
	ErrWouldBlock = errors.New("resource temporarily unavailable")
)

// Public types (alphabetical)

// Device is an open hardware device context.
type Device interface {
	// Backend returns the backend the device was created for.
	Backend() Backend

	// Close releases the device. It is safe to call more than once.
	Close() error
}

// Iterator is an explicit enumeration cursor. The zero value starts at the
// beginning, and independent iterators never interfere with each other.
type Iterator struct {
	next int
}

// Provider is the capability surface of a media library.
type Provider interface {
	// Name identifies the provider in logs and reports.
	Name() string

	// NextBackend returns the next backend for the cursor, or false once the
	// list is exhausted.
	NextBackend(it *Iterator) (Backend, bool)

	// NextCodec returns the next codec for the cursor, or false once the
	// list is exhausted.
	NextCodec(it *Iterator) (*Codec, bool)

	// FindEncoder looks an encoder up by its unique name.
	FindEncoder(name string) (*Codec, bool)

	// CreateDevice opens a hardware device context for the backend.
	CreateDevice(ctx context.Context, b Backend) (Device, error)

	// AllocSession allocates an unopened session for the codec.
	AllocSession(c *Codec) (Session, error)
}

// Session is a stateful encode or decode session.
type Session interface {
	// Open configures and opens the session.
	Open(ctx context.Context, cfg SessionConfig) error

	// AllocFrame allocates a frame matching the opened configuration.
	AllocFrame() (*Frame, error)

	// AllocPacket allocates a reusable packet.
	AllocPacket() (*Packet, error)

	// SendFrame submits one frame. A non-nil error means the frame was
	// rejected.
	SendFrame(f *Frame) error

	// ReceivePacket fills p with the next output packet. It returns
	// ErrWouldBlock when more input is needed, ErrEndOfStream when the
	// session is drained, and any other error on failure.
	ReceivePacket(p *Packet) error

	// Close releases the session. It is safe to call more than once.
	Close() error
}

// Public functions (alphabetical)

// Backends collects every backend of p with a fresh cursor.
func Backends(p Provider) []Backend {
	var out []Backend
	var it Iterator
	for {
		b, ok := p.NextBackend(&it)
		if !ok {
			return out
		}
		out = append(out, b)
	}
}

// Codecs collects every codec of p with a fresh cursor.
func Codecs(p Provider) []*Codec {
	var out []*Codec
	var it Iterator
	for {
		c, ok := p.NextCodec(&it)
		if !ok {
			return out
		}
		out = append(out, c)
	}
}

// Advance returns the current position and moves the cursor forward.
// Providers index their tables with it.
func (it *Iterator) Advance() int {
	i := it.next
	it.next++
	return i
}

// Reset moves the cursor back to the beginning.
func (it *Iterator) Reset() {
	it.next = 0
}
