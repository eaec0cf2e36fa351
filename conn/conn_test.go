package conn

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/yoe/dvswitch/dvproto"
	"github.com/yoe/dvswitch/frame"
	"github.com/yoe/dvswitch/mixer"
	"github.com/yoe/dvswitch/wakeup"
)

type fakeMixer struct {
	nextSource   mixer.SourceID
	nextSink     mixer.SinkID
	putFrames    []*frame.Frame
	removedSrcs  []mixer.SourceID
	sinks        map[mixer.SinkID]mixer.Sink
	allocateFail bool
}

func newFakeMixer() *fakeMixer {
	return &fakeMixer{sinks: make(map[mixer.SinkID]mixer.Sink)}
}

func (m *fakeMixer) AddSource() mixer.SourceID {
	id := m.nextSource
	m.nextSource++
	return id
}

func (m *fakeMixer) RemoveSource(id mixer.SourceID) {
	m.removedSrcs = append(m.removedSrcs, id)
}

func (m *fakeMixer) AllocateFrame() *frame.Frame {
	if m.allocateFail {
		return nil
	}
	return frame.New()
}

func (m *fakeMixer) PutFrame(id mixer.SourceID, f *frame.Frame) {
	m.putFrames = append(m.putFrames, f)
}

func (m *fakeMixer) AddSink(sink mixer.Sink) mixer.SinkID {
	id := m.nextSink
	m.nextSink++
	m.sinks[id] = sink
	return id
}

func (m *fakeMixer) RemoveSink(id mixer.SinkID) {
	delete(m.sinks, id)
}

func socketpair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))
	require.NoError(t, unix.SetNonblock(fds[1], true))
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestUnknownReceiveContinuesOnPartialGreeting(t *testing.T) {
	a, b := socketpair(t)
	mx := newFakeMixer()
	wake, err := wakeup.New()
	require.NoError(t, err)
	defer wake.Close()

	u := NewUnknown(a, mx, wake, discardLogger())

	_, err = unix.Write(b, []byte("DV"))
	require.NoError(t, err)

	outcome, next, err := u.Receive()
	require.NoError(t, err)
	assert.Equal(t, OutcomeContinue, outcome)
	assert.Same(t, u, next)
}

func TestUnknownTransmutesToSourceOnGreeting(t *testing.T) {
	a, b := socketpair(t)
	mx := newFakeMixer()
	wake, err := wakeup.New()
	require.NoError(t, err)
	defer wake.Close()

	u := NewUnknown(a, mx, wake, discardLogger())

	_, err = unix.Write(b, dvproto.GreetingSource[:])
	require.NoError(t, err)

	outcome, next, err := u.Receive()
	require.NoError(t, err)
	require.Equal(t, OutcomeTransmute, outcome)

	src, ok := next.(*Source)
	require.True(t, ok)
	assert.Equal(t, a, src.FD())
}

func TestUnknownDropsOnBadGreeting(t *testing.T) {
	a, b := socketpair(t)
	mx := newFakeMixer()
	wake, err := wakeup.New()
	require.NoError(t, err)
	defer wake.Close()

	u := NewUnknown(a, mx, wake, discardLogger())

	_, err = unix.Write(b, []byte("XXXX"))
	require.NoError(t, err)

	outcome, _, err := u.Receive()
	assert.Equal(t, OutcomeDrop, outcome)
	assert.Error(t, err)
}

func TestSourceReceiveFullFramePublishesAndAllocatesNext(t *testing.T) {
	a, b := socketpair(t)
	mx := newFakeMixer()

	src, err := NewSource(a, mx, discardLogger())
	require.NoError(t, err)

	seq := make([]byte, dvproto.DIFSequenceSize)
	dvproto.EncodeHeader(seq, frameSystemForTest())

	go func() {
		_, _ = unix.Write(b, seq)
	}()

	var outcome Outcome
	for outcome != OutcomeStay {
		outcome, _, err = src.Receive()
		require.NoError(t, err)
	}

	total, ok := dvproto.FrameSizeFor(frameSystemForTest())
	require.True(t, ok)
	rest := make([]byte, total-dvproto.DIFSequenceSize)
	go func() {
		_, _ = unix.Write(b, rest)
	}()

	for {
		outcome, _, err = src.Receive()
		require.NoError(t, err)
		if outcome == OutcomeStay {
			break
		}
	}

	require.Len(t, mx.putFrames, 1)
	assert.Equal(t, total, mx.putFrames[0].Size)
}

func TestSourceReceiveDropsOnPeerClose(t *testing.T) {
	a, b := socketpair(t)
	mx := newFakeMixer()

	src, err := NewSource(a, mx, discardLogger())
	require.NoError(t, err)

	require.NoError(t, unix.Close(b))

	outcome, _, err := src.Receive()
	assert.Equal(t, OutcomeDrop, outcome)
	assert.Error(t, err)
}

func TestSourceCloseReleasesFrameAndUnregisters(t *testing.T) {
	a, _ := socketpair(t)
	mx := newFakeMixer()

	src, err := NewSource(a, mx, discardLogger())
	require.NoError(t, err)
	f := src.frame

	src.Close()
	assert.Contains(t, mx.removedSrcs, mixer.SourceID(0))
	assert.EqualValues(t, 0, f.RefCount())
}

func TestSinkSendWritesCookedHeaderAndPayload(t *testing.T) {
	a, b := socketpair(t)
	mx := newFakeMixer()
	wake, err := wakeup.New()
	require.NoError(t, err)
	defer wake.Close()

	sink := NewSink(a, mx, wake, false, discardLogger())

	f := frame.New()
	f.Size = 100
	f.CutBefore = true
	for i := range f.Buf[:f.Size] {
		f.Buf[i] = byte(i)
	}
	sink.PutFrame(f)

	result, err := sink.Send()
	require.NoError(t, err)
	assert.Equal(t, SentAll, result)

	buf := make([]byte, dvproto.SinkFrameHeaderSize+f.Size)
	n, err := unix.Read(b, buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)

	assert.True(t, dvproto.ParseSinkFrameHeader(buf[:dvproto.SinkFrameHeaderSize]))
	assert.Equal(t, f.Buf[:f.Size], buf[dvproto.SinkFrameHeaderSize:])
}

func TestSinkSendFailsAfterOverflow(t *testing.T) {
	a, _ := socketpair(t)
	mx := newFakeMixer()
	wake, err := wakeup.New()
	require.NoError(t, err)
	defer wake.Close()

	sink := NewSink(a, mx, wake, true, discardLogger())

	for i := 0; i < 31; i++ {
		f := frame.New()
		f.Size = 10
		sink.PutFrame(f)
	}

	result, err := sink.Send()
	assert.Equal(t, SendFailed, result)
	assert.Error(t, err)
}

func TestSinkReceiveDropsOnUnexpectedInput(t *testing.T) {
	a, b := socketpair(t)
	mx := newFakeMixer()
	wake, err := wakeup.New()
	require.NoError(t, err)
	defer wake.Close()

	sink := NewSink(a, mx, wake, false, discardLogger())

	_, err = unix.Write(b, []byte("x"))
	require.NoError(t, err)

	outcome, _, err := sink.Receive()
	assert.Equal(t, OutcomeDrop, outcome)
	assert.Error(t, err)
}

func frameSystemForTest() frame.System {
	return frame.System525_60
}
