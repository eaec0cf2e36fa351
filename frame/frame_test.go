package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	f := New()
	require.NotNil(t, f)
	assert.Equal(t, MaxFrameSize, len(f.Buf))
	assert.EqualValues(t, 1, f.RefCount())
}

func TestRefRelease(t *testing.T) {
	f := New()
	f.Ref()
	assert.EqualValues(t, 2, f.RefCount())

	f.Release()
	assert.EqualValues(t, 1, f.RefCount())

	f.Release()
	assert.EqualValues(t, 0, f.RefCount())
}

func TestPayload(t *testing.T) {
	f := New()
	f.Size = 10
	for i := 0; i < 10; i++ {
		f.Buf[i] = byte(i)
	}

	payload := f.Payload()
	assert.Len(t, payload, 10)
	assert.Equal(t, byte(9), payload[9])
}

func TestSystemString(t *testing.T) {
	tests := []struct {
		name   string
		system System
		want   string
	}{
		{"unknown", SystemUnknown, "unknown"},
		{"525/60", System525_60, "525/60"},
		{"625/50", System625_50, "625/50"},
		{"out of range", System(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.system.String())
		})
	}
}
