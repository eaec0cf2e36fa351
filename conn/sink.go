package conn

import (
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/yoe/dvswitch/dvproto"
	"github.com/yoe/dvswitch/errors"
	"github.com/yoe/dvswitch/frame"
	"github.com/yoe/dvswitch/mixer"
	"github.com/yoe/dvswitch/sinkqueue"
	"github.com/yoe/dvswitch/wakeup"
)

// Sink transmits the mixer's published frames to a client, either cooked
// (header-prefixed) or raw (bare frames).
type Sink struct {
	fd     int
	id     mixer.SinkID
	mx     mixer.Mixer
	wake   *wakeup.Pipe
	raw    bool
	logger *slog.Logger

	queue *sinkqueue.Queue

	frameHeader   [dvproto.SinkFrameHeaderSize]byte
	framePos      int
	finishedFrame bool

	recvDummy [1]byte
}

// NewSink registers a new sink with the mixer. The sink becomes the
// mixer's fan-out target for every subsequent published frame as soon as
// AddSink returns.
func NewSink(fd int, mx mixer.Mixer, wake *wakeup.Pipe, raw bool, logger *slog.Logger) *Sink {
	s := &Sink{
		fd:     fd,
		mx:     mx,
		wake:   wake,
		raw:    raw,
		logger: logger,
		queue:  &sinkqueue.Queue{},
	}
	s.id = mx.AddSink(s)
	return s
}

// FD implements Conn.
func (s *Sink) FD() int { return s.fd }

// Describe implements Conn.
func (s *Sink) Describe() string { return fmt.Sprintf("sink %d", s.id) }

// QueueLen reports the sink's current queue depth, for metrics.
func (s *Sink) QueueLen() int { return s.queue.Len() }

// Close implements Conn. It unregisters the sink's mixer identity and
// releases every frame still queued; the event loop owns closing the
// socket itself.
func (s *Sink) Close() {
	s.mx.RemoveSink(s.id)
	s.queue.Drain()
}

// PutFrame implements mixer.Sink. Called from the mixer's fan-out
// goroutine, never from the event loop. On an empty-to-non-empty
// transition it signals the wakeup pipe so the event loop starts polling
// this sink for writability.
func (s *Sink) PutFrame(f *frame.Frame) {
	wasEmpty := s.queue.Push(f)
	if wasEmpty {
		if err := s.wake.WriteEnableOutput(s.fd); err != nil {
			s.logger.Warn("failed to signal wakeup pipe", "sink_id", s.id, "error", err)
		}
	}
}

// Receive implements Conn. Sinks are not supposed to send data after the
// handshake; any completed read - including a zero-length one caused by
// an orderly shutdown(WR) from the peer - is a drop. This is deliberately
// not distinguished further (see the design notes' Open Question 2); every
// such drop returns an error, so the event loop logs it as a warning like
// any other dropped connection.
func (s *Sink) Receive() (Outcome, Conn, error) {
	n, err := unix.Read(s.fd, s.recvDummy[:])
	if err == unix.EWOULDBLOCK || err == unix.EAGAIN {
		return OutcomeContinue, s, nil
	}
	if err != nil {
		return OutcomeDrop, nil, errors.WrapTransient(err, "conn", "Sink.Receive", "read from sink")
	}
	if n == 0 {
		return OutcomeDrop, nil, errShortRead
	}
	return OutcomeDrop, nil, errors.WrapInvalid(errors.ErrInvalidData, "conn", "Sink.Receive", "unexpected input on sink")
}

// Send implements Sender.
func (s *Sink) Send() (SendResult, error) {
	if s.queue.Overflowed() {
		return SendFailed, errors.WrapInvalid(errors.ErrSinkOverflowed, "conn", "Sink.Send", "sink queue overflowed")
	}

	for {
		if s.finishedFrame {
			s.queue.PopFront().Release()
			s.finishedFrame = false
		}

		f, ok := s.queue.Peek()
		if !ok {
			return SentAll, nil
		}

		headerLen := dvproto.SinkFrameHeaderSize
		if s.raw {
			headerLen = 0
		} else {
			dvproto.BuildSinkFrameHeader(s.frameHeader[:], f.CutBefore)
		}
		total := headerLen + f.Size

		var iovecs [][]byte
		switch {
		case !s.raw && s.framePos < headerLen:
			iovecs = [][]byte{s.frameHeader[s.framePos:], f.Payload()}
		case !s.raw:
			iovecs = [][]byte{f.Payload()[s.framePos-headerLen:]}
		default:
			iovecs = [][]byte{f.Payload()[s.framePos:]}
		}

		n, err := unix.Writev(s.fd, iovecs)
		if err == unix.EWOULDBLOCK || err == unix.EAGAIN {
			return SentSome, nil
		}
		if err != nil {
			return SendFailed, errors.WrapTransient(err, "conn", "Sink.Send", "writev to sink")
		}

		s.framePos += n
		if s.framePos >= total {
			s.framePos = 0
			s.finishedFrame = true
			continue
		}
		return SentSome, nil
	}
}
