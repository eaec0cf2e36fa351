package dvproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoe/dvswitch/errors"
	"github.com/yoe/dvswitch/frame"
)

func TestParseHeaderRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		system     frame.System
		wantSize   int
	}{
		{"ntsc", frame.System525_60, FrameSize525_60},
		{"pal", frame.System625_50, FrameSize625_50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq := make([]byte, DIFSequenceSize)
			EncodeHeader(seq, tt.system)

			system, size, err := ParseHeader(seq)
			require.NoError(t, err)
			assert.Equal(t, tt.system, system)
			assert.Equal(t, tt.wantSize, size)
		})
	}
}

func TestParseHeaderShortSequence(t *testing.T) {
	_, _, err := ParseHeader(make([]byte, DIFSequenceSize-1))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestParseHeaderUnrecognizedSystem(t *testing.T) {
	seq := make([]byte, DIFSequenceSize)
	seq[0] = 0xFF

	_, _, err := ParseHeader(seq)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestSinkFrameHeaderRoundTrip(t *testing.T) {
	var hdr [SinkFrameHeaderSize]byte

	BuildSinkFrameHeader(hdr[:], true)
	assert.True(t, ParseSinkFrameHeader(hdr[:]))

	BuildSinkFrameHeader(hdr[:], false)
	assert.False(t, ParseSinkFrameHeader(hdr[:]))
}

func TestFrameSizeFor(t *testing.T) {
	size, ok := FrameSizeFor(frame.System525_60)
	assert.True(t, ok)
	assert.Equal(t, FrameSize525_60, size)

	size, ok = FrameSizeFor(frame.SystemUnknown)
	assert.False(t, ok)
	assert.Zero(t, size)
}
