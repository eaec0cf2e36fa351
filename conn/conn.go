// Package conn implements the mixer hub's per-socket connection state
// machines: Unknown (awaiting a greeting), Source (receiving concatenated
// DV frames), and Sink, cooked or raw (transmitting the mixer's published
// output). Each is a polymorphic Conn value the event loop holds in its
// per-slot vector; a successful greeting replaces an Unknown's slot with a
// Source or Sink rather than mutating a base type.
package conn

import "github.com/yoe/dvswitch/errors"

// Outcome is the result of a Receive call, telling the event loop what to
// do with the slot.
type Outcome int

const (
	// OutcomeContinue means the receive buffer is only partially filled
	// (or the read would have blocked); keep the same Conn in the slot and
	// take no other action.
	OutcomeContinue Outcome = iota
	// OutcomeStay means a logical unit (a frame's first DIF sequence, or a
	// whole frame) completed and the connection remains the same concrete
	// kind.
	OutcomeStay
	// OutcomeTransmute means the slot's Conn should be replaced with a new
	// one of a different concrete kind; the old one is closed by the
	// caller.
	OutcomeTransmute
	// OutcomeDrop means the connection should be closed and its slot
	// removed.
	OutcomeDrop
)

// SendResult is the result of a Sink's Send call.
type SendResult int

const (
	// SendFailed means the sink is doomed (overflowed, or a write error)
	// and should be dropped.
	SendFailed SendResult = iota
	// SentSome means progress was made but the queue is not yet drained;
	// keep write-interest.
	SentSome
	// SentAll means the queue was emptied; clear write-interest.
	SentAll
)

// Conn is the common surface every connection kind implements.
type Conn interface {
	// FD returns the connection's socket descriptor.
	FD() int
	// Describe names the connection for logging ("source 3", "sink 7",
	// "unknown client (fd 5)").
	Describe() string
	// Receive is called by the event loop when the socket is readable.
	Receive() (Outcome, Conn, error)
	// Close releases the connection's mixer identity and any buffered
	// frames, but does not close the underlying socket: on transmute the
	// new connection keeps using the same fd, so the event loop is the
	// sole owner of the actual close() call and performs it only when the
	// slot is truly dropped.
	Close()
}

// Sender is implemented by connection kinds that can have write-interest
// (currently only Sink). The event loop type-asserts for this before
// registering POLLOUT interest.
type Sender interface {
	Send() (SendResult, error)
}

// errShortRead classifies a read() returning 0 bytes, which per the
// receive contract always means drop.
var errShortRead = errors.WrapInvalid(errors.ErrConnectionLost, "conn", "Receive", "peer closed connection")
