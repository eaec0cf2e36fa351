package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoe/dvswitch/frame"
)

func TestEmptyRing(t *testing.T) {
	var r Ring
	assert.True(t, r.Empty())
	assert.False(t, r.Full())
	assert.Zero(t, r.Len())
}

func TestPushPopFIFO(t *testing.T) {
	var r Ring
	frames := make([]*frame.Frame, 3)
	for i := range frames {
		frames[i] = frame.New()
		r.Push(frames[i])
	}

	require.Equal(t, 3, r.Len())
	assert.Same(t, frames[0], r.Front())

	for i := range frames {
		assert.Same(t, frames[i], r.Pop())
	}
	assert.True(t, r.Empty())
}

func TestFillToCapacity(t *testing.T) {
	var r Ring
	for i := 0; i < Capacity; i++ {
		require.False(t, r.Full())
		r.Push(frame.New())
	}
	assert.True(t, r.Full())
	assert.Equal(t, Capacity, r.Len())
}

func TestWrapAround(t *testing.T) {
	var r Ring
	for i := 0; i < Capacity; i++ {
		r.Push(frame.New())
	}
	for i := 0; i < Capacity/2; i++ {
		r.Pop()
	}
	for i := 0; i < Capacity/2; i++ {
		r.Push(frame.New())
	}
	assert.True(t, r.Full())
}
