package mixer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoe/dvswitch/frame"
)

type recordingSink struct {
	mu     sync.Mutex
	frames []*frame.Frame
}

func (s *recordingSink) PutFrame(f *frame.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
}

func (s *recordingSink) received() []*frame.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*frame.Frame(nil), s.frames...)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func newTestMixer(t *testing.T) *RefMixer {
	m := New(FormatSettings{System: frame.System525_60}, nil)
	t.Cleanup(m.Stop)
	return m
}

func TestAddSourceAllocatesDistinctIDs(t *testing.T) {
	m := newTestMixer(t)

	id1 := m.AddSource()
	id2 := m.AddSource()
	assert.NotEqual(t, id1, id2)
}

func TestPutFrameOnlySelectedSourceReachesSinks(t *testing.T) {
	m := newTestMixer(t)

	src1 := m.AddSource()
	src2 := m.AddSource()

	sink := &recordingSink{}
	m.AddSink(sink)

	require.NoError(t, m.SetVideoSource(src1))

	m.PutFrame(src2, frame.New())
	m.PutFrame(src1, frame.New())

	waitFor(t, time.Second, func() bool { return len(sink.received()) == 1 })
	assert.Len(t, sink.received(), 1)
}

func TestSetVideoSourceRejectsUnknownID(t *testing.T) {
	m := newTestMixer(t)

	err := m.SetVideoSource(SourceID(999))
	assert.Error(t, err)
}

func TestRemoveSourceClearsSelection(t *testing.T) {
	m := newTestMixer(t)

	src := m.AddSource()
	require.NoError(t, m.SetVideoSource(src))

	m.RemoveSource(src)

	m.mu.Lock()
	selected := m.videoSourceID
	m.mu.Unlock()
	assert.Equal(t, SourceID(InvalidID), selected)

	err := m.SetVideoSource(src)
	assert.Error(t, err, "re-selecting a removed source must fail")
}

func TestCutIsConsumedByNextSelectedFrame(t *testing.T) {
	m := newTestMixer(t)

	src := m.AddSource()
	require.NoError(t, m.SetVideoSource(src))

	sink := &recordingSink{}
	m.AddSink(sink)

	m.Cut()
	m.PutFrame(src, frame.New())
	waitFor(t, time.Second, func() bool { return len(sink.received()) == 1 })
	assert.True(t, sink.received()[0].CutBefore)

	m.PutFrame(src, frame.New())
	waitFor(t, time.Second, func() bool { return len(sink.received()) == 2 })
	assert.False(t, sink.received()[1].CutBefore)
}

func TestEnableRecordTracksFlag(t *testing.T) {
	m := newTestMixer(t)

	assert.False(t, m.Recording())
	m.EnableRecord(true)
	assert.True(t, m.Recording())
}

func TestRemoveSinkStopsFanOut(t *testing.T) {
	m := newTestMixer(t)

	src := m.AddSource()
	require.NoError(t, m.SetVideoSource(src))

	sink := &recordingSink{}
	id := m.AddSink(sink)
	m.RemoveSink(id)

	m.PutFrame(src, frame.New())
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, sink.received())
}
