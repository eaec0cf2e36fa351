// Package wakeup implements the event loop's cross-thread nudge: a
// non-blocking self-pipe that any goroutine can write a message to, and
// that only the event-loop goroutine reads.
//
// The payload is a sequence of machine-word-sized (8-byte on amd64/arm64)
// signed integers. Two message kinds: Quit (-1) and enable-output (a
// non-negative file descriptor the loop should now poll for writability).
// Single-item writes are at most 8 bytes, well under PIPE_BUF, so they are
// atomic with respect to other writers per pipe(7) semantics.
package wakeup

import (
	"encoding/binary"

	"golang.org/x/sys/unix"

	"github.com/yoe/dvswitch/errors"
)

// Quit is the message value that tells the event loop to shut down.
const Quit = -1

// messageSize is the wire size of one message: a machine word.
const messageSize = 8

// MaxBatch bounds how many messages a single ReadMessages call will
// return, matching the contract's "batched in a single read of up to 1024
// items".
const MaxBatch = 1024

// Pipe is a non-blocking self-pipe pair. The writer end may be used from
// any goroutine; the reader end must only be used by the event-loop
// goroutine.
type Pipe struct {
	readFD  int
	writeFD int
}

// New creates a new non-blocking self-pipe.
func New() (*Pipe, error) {
	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_NONBLOCK); err != nil {
		return nil, errors.WrapFatal(err, "wakeup", "New", "create self-pipe")
	}
	return &Pipe{readFD: fds[0], writeFD: fds[1]}, nil
}

// ReadFD returns the descriptor the event loop polls for readability.
func (p *Pipe) ReadFD() int {
	return p.readFD
}

// Close closes both ends of the pipe.
func (p *Pipe) Close() error {
	err1 := unix.Close(p.readFD)
	err2 := unix.Close(p.writeFD)
	if err1 != nil {
		return errors.Wrap(err1, "wakeup", "Close", "close read end")
	}
	if err2 != nil {
		return errors.Wrap(err2, "wakeup", "Close", "close write end")
	}
	return nil
}

// Write sends a single message. Safe to call from any goroutine, including
// concurrently with other Write calls.
func (p *Pipe) Write(msg int64) error {
	var buf [messageSize]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(msg))

	for {
		n, err := unix.Write(p.writeFD, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err == unix.EWOULDBLOCK || err == unix.EAGAIN {
			// The pipe is full of unread enable-output/quit messages; the
			// event loop will drain it on its next iteration regardless,
			// so this write is not load-bearing and is dropped.
			return nil
		}
		if err != nil {
			return errors.WrapTransient(err, "wakeup", "Write", "write to self-pipe")
		}
		if n != messageSize {
			return errors.WrapTransient(errors.ErrInvalidData, "wakeup", "Write", "short write to self-pipe")
		}
		return nil
	}
}

// WriteQuit sends the Quit message.
func (p *Pipe) WriteQuit() error {
	return p.Write(Quit)
}

// WriteEnableOutput tells the event loop to start polling fd for
// writability.
func (p *Pipe) WriteEnableOutput(fd int) error {
	return p.Write(int64(fd))
}

// ReadMessages drains up to MaxBatch pending messages. Called by the
// event-loop goroutine when the reader fd is readable.
func (p *Pipe) ReadMessages() ([]int64, error) {
	buf := make([]byte, messageSize*MaxBatch)
	n, err := unix.Read(p.readFD, buf)
	if err == unix.EWOULDBLOCK || err == unix.EAGAIN {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapTransient(err, "wakeup", "ReadMessages", "read self-pipe")
	}
	if n == 0 {
		return nil, nil
	}

	count := n / messageSize
	msgs := make([]int64, count)
	for i := 0; i < count; i++ {
		msgs[i] = int64(binary.LittleEndian.Uint64(buf[i*messageSize:]))
	}
	return msgs, nil
}
