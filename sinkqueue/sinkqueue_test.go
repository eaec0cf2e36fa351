package sinkqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoe/dvswitch/frame"
	"github.com/yoe/dvswitch/ring"
)

func TestPushReportsEmptyTransition(t *testing.T) {
	var q Queue

	wasEmpty := q.Push(frame.New())
	assert.True(t, wasEmpty)

	wasEmpty = q.Push(frame.New())
	assert.False(t, wasEmpty)
}

func TestOverflowLatchesAndDropsFrame(t *testing.T) {
	var q Queue

	for i := 0; i < ring.Capacity; i++ {
		q.Push(frame.New())
	}
	require.False(t, q.Overflowed())

	overflowFrame := frame.New()
	q.Push(overflowFrame)

	assert.True(t, q.Overflowed())
	assert.EqualValues(t, 0, overflowFrame.RefCount())
	assert.Equal(t, ring.Capacity, q.Len())

	// Once latched, overflow never reverts even after draining.
	q.PopFront().Release()
	assert.True(t, q.Overflowed())
}

func TestPeekAndPopFront(t *testing.T) {
	var q Queue
	_, ok := q.Peek()
	assert.False(t, ok)

	f := frame.New()
	q.Push(f)

	peeked, ok := q.Peek()
	require.True(t, ok)
	assert.Same(t, f, peeked)

	assert.Same(t, f, q.PopFront())
	assert.True(t, q.Empty())
}

func TestDrainReleasesEveryFrame(t *testing.T) {
	var q Queue
	frames := make([]*frame.Frame, 5)
	for i := range frames {
		frames[i] = frame.New()
		q.Push(frames[i])
	}

	q.Drain()

	assert.True(t, q.Empty())
	for _, f := range frames {
		assert.EqualValues(t, 0, f.RefCount())
	}
}
