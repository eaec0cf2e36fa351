// Package server implements the mixer hub's non-blocking multiplexed
// event loop: it owns the listening socket, the wakeup self-pipe, and
// every accepted connection, driving each through its receive/send state
// machine and dropping on error.
package server

import (
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/yoe/dvswitch/conn"
	"github.com/yoe/dvswitch/errors"
	"github.com/yoe/dvswitch/health"
	"github.com/yoe/dvswitch/metric"
	"github.com/yoe/dvswitch/mixer"
	"github.com/yoe/dvswitch/wakeup"
)

// slot pairs a connection with whether the loop currently has
// write-interest registered for it.
type slot struct {
	c             conn.Conn
	writeInterest bool
}

// EventLoop is the single-threaded reactor that owns every client socket.
// Only the goroutine that calls Run mutates connection lifetime or polling
// state; the wakeup pipe is the only way other goroutines influence it.
type EventLoop struct {
	listenFD int
	wake     *wakeup.Pipe
	mx       mixer.Mixer
	logger   *slog.Logger
	metrics  *metric.Metrics // may be nil
	health   *health.Monitor // may be nil

	slots []slot
}

// New creates an event loop bound to an already-listening, non-blocking
// socket.
func New(listenFD int, wake *wakeup.Pipe, mx mixer.Mixer, logger *slog.Logger, metrics *metric.Metrics, healthMon *health.Monitor) *EventLoop {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventLoop{
		listenFD: listenFD,
		wake:     wake,
		mx:       mx,
		logger:   logger.With("component", "event-loop"),
		metrics:  metrics,
		health:   healthMon,
	}
}

// Stop requests an orderly shutdown from any goroutine. Safe to call
// concurrently with Run.
func (el *EventLoop) Stop() error {
	return el.wake.WriteQuit()
}

// Run drives the event loop until a quit message is received or poll
// fails fatally. It always returns with every connection closed and the
// listener left open (the caller owns the listener's lifecycle).
func (el *EventLoop) Run() error {
	el.logger.Info("event loop starting")
	if el.health != nil {
		el.health.UpdateHealthy("event-loop", "polling")
	}

	for {
		pfds := el.buildPollFDs()

		_, err := unix.Poll(pfds, -1)
		if err == unix.EINTR || err == unix.EAGAIN {
			continue
		}
		if err != nil {
			if el.health != nil {
				el.health.UpdateUnhealthy("event-loop", health.SanitizeError(err.Error()))
			}
			el.shutdownAll()
			return errors.WrapFatal(err, "server", "Run", "poll failed")
		}

		if pfds[0].Revents&unix.POLLIN != 0 {
			quit, err := el.handleWakeup()
			if err != nil {
				el.logger.Warn("wakeup read failed", "error", err)
			}
			if quit {
				el.logger.Info("quit message received, shutting down")
				el.shutdownAll()
				if el.health != nil {
					el.health.UpdateHealthy("event-loop", "stopped")
				}
				return nil
			}
		}

		if pfds[1].Revents&unix.POLLIN != 0 {
			el.acceptNew()
		}

		el.serviceConnections(pfds[2:])

		if el.metrics != nil {
			el.metrics.SetSinkQueueDepth("total", el.totalQueueDepth())
		}
	}
}

// buildPollFDs constructs the pollfd vector for the next iteration: slot 0
// is the wakeup reader, slot 1 the listener, the rest mirror el.slots 1:1.
func (el *EventLoop) buildPollFDs() []unix.PollFd {
	pfds := make([]unix.PollFd, 2+len(el.slots))
	pfds[0] = unix.PollFd{Fd: int32(el.wake.ReadFD()), Events: unix.POLLIN}
	pfds[1] = unix.PollFd{Fd: int32(el.listenFD), Events: unix.POLLIN}

	for i, s := range el.slots {
		events := int16(unix.POLLIN)
		if s.writeInterest {
			events |= unix.POLLOUT
		}
		pfds[2+i] = unix.PollFd{Fd: int32(s.c.FD()), Events: events}
	}
	return pfds
}

// handleWakeup drains pending self-pipe messages. Returns quit=true if a
// Quit message was seen; any -1 is treated as the signal to stop
// processing further messages in this batch and begin shutdown, per the
// contract.
func (el *EventLoop) handleWakeup() (quit bool, err error) {
	msgs, err := el.wake.ReadMessages()
	if err != nil {
		return false, err
	}

	for _, m := range msgs {
		if m == wakeup.Quit {
			return true, nil
		}
		fd := int(m)
		matched := false
		for i := range el.slots {
			if el.slots[i].c.FD() == fd {
				el.slots[i].writeInterest = true
				matched = true
				break
			}
		}
		if !matched {
			el.logger.Debug("wakeup for unknown fd, sink already dropped", "fd", fd)
		}
	}
	return false, nil
}

// acceptNew accepts as many pending connections as are ready and appends
// an Unknown slot for each. accept() errors are non-fatal.
func (el *EventLoop) acceptNew() {
	for {
		fd, err := Accept(el.listenFD)
		if err == unix.EWOULDBLOCK || err == unix.EAGAIN {
			return
		}
		if err != nil {
			el.logger.Warn("accept failed", "error", err)
			return
		}

		connLogger := el.logger.With("conn_id", uuid.NewString())
		el.slots = append(el.slots, slot{c: conn.NewUnknown(fd, el.mx, el.wake, connLogger)})
		if el.metrics != nil {
			el.metrics.ConnectionOpened("unknown")
		}
		connLogger.Debug("accepted connection", "fd", fd)
	}
}

// serviceConnections walks every connection slot, dispatching receive/send
// events and compacting the slot (and matching pollfd) vector in place
// when a connection is dropped.
func (el *EventLoop) serviceConnections(pfds []unix.PollFd) {
	// Slots appended by acceptNew this iteration have no corresponding
	// pollfd yet (buildPollFDs ran before acceptNew); leave them for the
	// next iteration's poll/buildPollFDs pass instead of indexing past
	// the end of pfds.
	for i := 0; i < len(pfds) && i < len(el.slots); {
		pf := pfds[i]
		drop := false

		switch {
		case pf.Revents&(unix.POLLHUP|unix.POLLERR) != 0:
			drop = true
		default:
			if pf.Revents&unix.POLLIN != 0 {
				drop = el.handleReceive(i)
			}
			if !drop && pf.Revents&unix.POLLOUT != 0 {
				drop = el.handleSend(i)
			}
		}

		if drop {
			el.dropSlot(i)
			pfds = append(pfds[:i], pfds[i+1:]...)
			continue
		}
		i++
	}
}

// handleReceive calls Receive on the connection in slot i and applies the
// resulting Outcome. Returns true if the slot should be dropped.
func (el *EventLoop) handleReceive(i int) bool {
	c := el.slots[i].c
	outcome, next, err := c.Receive()

	switch outcome {
	case conn.OutcomeContinue, conn.OutcomeStay:
		return false
	case conn.OutcomeTransmute:
		c.Close()
		el.slots[i].c = next
		el.slots[i].writeInterest = false
		return false
	case conn.OutcomeDrop:
		if err != nil {
			el.logger.Warn("dropping connection", "connection", c.Describe(), "error", err)
		} else {
			el.logger.Debug("dropping connection", "connection", c.Describe())
		}
		// dropSlot closes c; closing it here too would double-invoke
		// RemoveSource/RemoveSink on the mixer.
		if el.metrics != nil {
			el.metrics.RecordError("event-loop", errors.Classify(err).String())
		}
		return true
	default:
		return true
	}
}

// handleSend calls Send on the connection in slot i, if it supports
// sending, and applies the resulting SendResult. Returns true if the slot
// should be dropped.
func (el *EventLoop) handleSend(i int) bool {
	sender, ok := el.slots[i].c.(conn.Sender)
	if !ok {
		return false
	}

	result, err := sender.Send()
	switch result {
	case conn.SentAll:
		el.slots[i].writeInterest = false
		return false
	case conn.SentSome:
		return false
	case conn.SendFailed:
		if err != nil {
			el.logger.Warn("dropping sink", "connection", el.slots[i].c.Describe(), "error", err)
		}
		if el.metrics != nil {
			reason := "write_error"
			if errors.IsInvalid(err) {
				reason = "overflowed"
				el.metrics.RecordSinkOverflow(el.slots[i].c.Describe())
			}
			el.metrics.ConnectionClosed("sink", reason)
		}
		return true
	default:
		return true
	}
}

// dropSlot closes the connection's logical state and its socket, and
// removes it from el.slots.
func (el *EventLoop) dropSlot(i int) {
	el.slots[i].c.Close()
	_ = unix.Close(el.slots[i].c.FD())
	el.slots = append(el.slots[:i], el.slots[i+1:]...)
}

// shutdownAll closes every remaining connection, in arbitrary order.
func (el *EventLoop) shutdownAll() {
	for _, s := range el.slots {
		s.c.Close()
		_ = unix.Close(s.c.FD())
	}
	el.slots = nil
}

// totalQueueDepth sums the queue depth of every current sink, for the
// aggregate gauge.
func (el *EventLoop) totalQueueDepth() int {
	total := 0
	for _, s := range el.slots {
		if sink, ok := s.c.(interface{ QueueLen() int }); ok {
			total += sink.QueueLen()
		}
	}
	return total
}
