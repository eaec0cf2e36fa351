package conn

import (
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/yoe/dvswitch/dvproto"
	"github.com/yoe/dvswitch/errors"
	"github.com/yoe/dvswitch/frame"
	"github.com/yoe/dvswitch/mixer"
)

// Source receives concatenated DV frames from a client and publishes each
// complete frame to the mixer.
type Source struct {
	fd     int
	id     mixer.SourceID
	mx     mixer.Mixer
	logger *slog.Logger

	frame *frame.Frame
	// firstSequence is true when the next receive should fill the first
	// DIF sequence (used to parse the header); false when it should fill
	// the frame's remainder.
	firstSequence bool
	pos           int
}

// NewSource registers a new source with the mixer and allocates its first
// frame buffer. If frame allocation or registration fails, the caller's
// partially-built state is rolled back (no mixer identity is taken) per
// the resource-exhaustion handling in the error design.
func NewSource(fd int, mx mixer.Mixer, logger *slog.Logger) (*Source, error) {
	f := mx.AllocateFrame()
	if f == nil {
		return nil, errors.WrapFatal(errors.ErrResourceExhausted, "conn", "NewSource", "allocate frame")
	}

	id := mx.AddSource()

	return &Source{
		fd:            fd,
		id:            id,
		mx:            mx,
		logger:        logger,
		frame:         f,
		firstSequence: true,
	}, nil
}

// FD implements Conn.
func (s *Source) FD() int { return s.fd }

// Describe implements Conn.
func (s *Source) Describe() string { return fmt.Sprintf("source %d", s.id) }

// Close implements Conn. It unregisters the source's mixer identity and
// releases any unfinished frame; the event loop owns closing the socket
// itself.
func (s *Source) Close() {
	s.mx.RemoveSource(s.id)
	if s.frame != nil {
		s.frame.Release()
		s.frame = nil
	}
}

// Receive implements Conn.
//
// The source path never checks that a mid-stream frame's size matches the
// first frame's - a system change partway through a stream would
// desynchronize receive framing. This is deliberately preserved (see the
// design notes' Open Question 1): the original behaves the same way.
func (s *Source) Receive() (Outcome, Conn, error) {
	var target []byte
	if s.firstSequence {
		target = s.frame.Buf[s.pos:dvproto.DIFSequenceSize]
	} else {
		target = s.frame.Buf[s.pos:s.frame.Size]
	}

	n, err := unix.Read(s.fd, target)
	if err == unix.EWOULDBLOCK || err == unix.EAGAIN {
		return OutcomeContinue, s, nil
	}
	if err != nil {
		return OutcomeDrop, nil, errors.WrapTransient(err, "conn", "Source.Receive", "read frame data")
	}
	if n == 0 {
		return OutcomeDrop, nil, errShortRead
	}

	s.pos += n

	if s.firstSequence {
		if s.pos < dvproto.DIFSequenceSize {
			return OutcomeContinue, s, nil
		}
		system, size, err := dvproto.ParseHeader(s.frame.Buf[:dvproto.DIFSequenceSize])
		if err != nil {
			return OutcomeDrop, nil, errors.WrapInvalid(err, "conn", "Source.Receive", "parse DV header")
		}
		s.frame.System = system
		s.frame.Size = size
		s.firstSequence = false
		return OutcomeStay, s, nil
	}

	if s.pos < s.frame.Size {
		return OutcomeContinue, s, nil
	}

	published := s.frame
	s.mx.PutFrame(s.id, published)

	next := s.mx.AllocateFrame()
	if next == nil {
		return OutcomeDrop, nil, errors.WrapFatal(errors.ErrResourceExhausted, "conn", "Source.Receive", "allocate next frame")
	}
	s.frame = next
	s.pos = 0
	s.firstSequence = true
	return OutcomeStay, s, nil
}
