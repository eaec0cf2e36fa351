package conn

import (
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/yoe/dvswitch/dvproto"
	"github.com/yoe/dvswitch/errors"
	"github.com/yoe/dvswitch/mixer"
	"github.com/yoe/dvswitch/wakeup"
)

// Unknown is a freshly accepted connection awaiting its four-byte
// greeting.
type Unknown struct {
	fd     int
	mx     mixer.Mixer
	wake   *wakeup.Pipe
	logger *slog.Logger

	buf [dvproto.GreetingSize]byte
	pos int
}

// NewUnknown wraps a freshly accepted, already-non-blocking socket.
func NewUnknown(fd int, mx mixer.Mixer, wake *wakeup.Pipe, logger *slog.Logger) *Unknown {
	return &Unknown{
		fd:     fd,
		mx:     mx,
		wake:   wake,
		logger: logger,
	}
}

// FD implements Conn.
func (u *Unknown) FD() int { return u.fd }

// Describe implements Conn.
func (u *Unknown) Describe() string { return fmt.Sprintf("unknown client (fd %d)", u.fd) }

// Close implements Conn. Unknown holds no mixer identity, so there is
// nothing to release; the event loop owns closing the socket itself.
func (u *Unknown) Close() {}

// Receive implements Conn. It fills the greeting buffer and, on
// completion, transmutes into a Source or Sink, or drops on an
// unrecognized token.
func (u *Unknown) Receive() (Outcome, Conn, error) {
	n, err := unix.Read(u.fd, u.buf[u.pos:])
	if err == unix.EWOULDBLOCK || err == unix.EAGAIN {
		return OutcomeContinue, u, nil
	}
	if err != nil {
		return OutcomeDrop, nil, errors.WrapTransient(err, "conn", "Unknown.Receive", "read greeting")
	}
	if n == 0 {
		return OutcomeDrop, nil, errShortRead
	}

	u.pos += n
	if u.pos < dvproto.GreetingSize {
		return OutcomeContinue, u, nil
	}

	switch u.buf {
	case dvproto.GreetingSource:
		src, err := NewSource(u.fd, u.mx, u.logger)
		if err != nil {
			return OutcomeDrop, nil, err
		}
		return OutcomeTransmute, src, nil
	case dvproto.GreetingSink:
		return OutcomeTransmute, NewSink(u.fd, u.mx, u.wake, false, u.logger), nil
	case dvproto.GreetingRawSink:
		return OutcomeTransmute, NewSink(u.fd, u.mx, u.wake, true, u.logger), nil
	default:
		return OutcomeDrop, nil, errors.WrapInvalid(errors.ErrBadGreeting, "conn", "Unknown.Receive", "unrecognized greeting")
	}
}
