package wakeup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteQuitAndRead(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.WriteQuit())

	msgs, err := p.ReadMessages()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.EqualValues(t, Quit, msgs[0])
}

func TestWriteEnableOutputBatch(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	defer p.Close()

	for _, fd := range []int{3, 7, 42} {
		require.NoError(t, p.WriteEnableOutput(fd))
	}

	msgs, err := p.ReadMessages()
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.EqualValues(t, []int64{3, 7, 42}, msgs)
}

func TestReadMessagesEmptyIsNotAnError(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	defer p.Close()

	msgs, err := p.ReadMessages()
	require.NoError(t, err)
	assert.Nil(t, msgs)
}
