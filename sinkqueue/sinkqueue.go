// Package sinkqueue wraps a fixed-capacity ring.Ring of frames with the
// mutex and overflow-latch semantics a sink connection needs to be shared
// safely between the event-loop goroutine (which drains it during send)
// and the mixer goroutine (which fills it via Push).
//
// The critical section guards only the ring itself - enqueue, dequeue,
// peek - never socket I/O; callers must release the lock before writing to
// the wire.
package sinkqueue

import (
	"sync"

	"github.com/yoe/dvswitch/frame"
	"github.com/yoe/dvswitch/ring"
)

// Queue is a mixer-to-sink frame queue with slow-consumer overflow
// handling: once full, a Push latches Overflowed and drops the incoming
// frame instead of blocking the mixer.
type Queue struct {
	mu         sync.Mutex
	ring       ring.Ring
	overflowed bool
}

// Push enqueues f. If the queue is already full, it latches Overflowed and
// releases f instead of queuing it. Returns wasEmpty, which is true iff
// the queue transitioned from empty to non-empty - the caller uses this to
// decide whether to signal the wakeup pipe.
func (q *Queue) Push(f *frame.Frame) (wasEmpty bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ring.Full() {
		q.overflowed = true
		f.Release()
		return false
	}

	wasEmpty = q.ring.Empty()
	q.ring.Push(f)
	return wasEmpty
}

// Overflowed reports whether this queue has ever overflowed. Once true, it
// never reverts: the sink is doomed and will be dropped on its next send.
func (q *Queue) Overflowed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.overflowed
}

// Empty reports whether the queue currently holds no frames.
func (q *Queue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ring.Empty()
}

// Len reports the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ring.Len()
}

// PopFront removes and returns the oldest frame. The caller must have
// already verified !Empty().
func (q *Queue) PopFront() *frame.Frame {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ring.Pop()
}

// Peek returns the oldest frame without removing it, and whether the queue
// is non-empty.
func (q *Queue) Peek() (*frame.Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ring.Empty() {
		return nil, false
	}
	return q.ring.Front(), true
}

// Drain releases every remaining frame's reference and empties the queue.
// Called when the sink connection is dropped.
func (q *Queue) Drain() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for !q.ring.Empty() {
		q.ring.Pop().Release()
	}
}
