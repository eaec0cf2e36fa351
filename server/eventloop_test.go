package server

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/yoe/dvswitch/dvproto"
	"github.com/yoe/dvswitch/frame"
	"github.com/yoe/dvswitch/mixer"
	"github.com/yoe/dvswitch/wakeup"
)

// listenEphemeral starts a non-blocking listener on an OS-assigned port and
// returns the fd plus the address clients should dial.
func listenEphemeral(t *testing.T) (int, string) {
	t.Helper()
	fd, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = unix.Close(fd) })

	sa, err := unix.Getsockname(fd)
	require.NoError(t, err)
	in4, ok := sa.(*unix.SockaddrInet4)
	require.True(t, ok)

	return fd, net.JoinHostPort("127.0.0.1", strconv.Itoa(in4.Port))
}

func newTestLoop(t *testing.T) (*EventLoop, string, *mixer.RefMixer) {
	t.Helper()
	listenFD, addr := listenEphemeral(t)

	wake, err := wakeup.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = wake.Close() })

	mx := mixer.New(mixer.FormatSettings{System: frame.System525_60}, nil)
	t.Cleanup(mx.Stop)

	loop := New(listenFD, wake, mx, nil, nil, nil)
	return loop, addr, mx
}

func runLoop(t *testing.T, loop *EventLoop) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- loop.Run() }()
	return done
}

func TestQuitShutsDownLoopPromptly(t *testing.T) {
	loop, _, _ := newTestLoop(t)
	done := runLoop(t, loop)

	require.NoError(t, loop.Stop())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("event loop did not shut down after Stop")
	}
}

func TestSourceToSinkFanOutThroughRealSockets(t *testing.T) {
	loop, addr, mx := newTestLoop(t)
	done := runLoop(t, loop)
	defer func() {
		_ = loop.Stop()
		<-done
	}()

	sourceConn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer sourceConn.Close()

	sinkConn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer sinkConn.Close()

	_, err = sourceConn.Write(dvproto.GreetingSource[:])
	require.NoError(t, err)
	_, err = sinkConn.Write(dvproto.GreetingSink[:])
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return mx.SetVideoSource(0) == nil
	}, 2*time.Second, 5*time.Millisecond, "source never registered with the mixer")

	frameBuf := make([]byte, dvproto.FrameSize525_60)
	dvproto.EncodeHeader(frameBuf, frame.System525_60)
	for i := dvproto.DIFSequenceSize; i < len(frameBuf); i++ {
		frameBuf[i] = byte(i)
	}

	_, err = sourceConn.Write(frameBuf)
	require.NoError(t, err)

	header := make([]byte, dvproto.SinkFrameHeaderSize)
	require.NoError(t, readFull(sinkConn, header, 3*time.Second))

	payload := make([]byte, dvproto.FrameSize525_60)
	require.NoError(t, readFull(sinkConn, payload, 3*time.Second))

	require.Equal(t, frameBuf, payload)
}

func readFull(conn net.Conn, buf []byte, timeout time.Duration) error {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		if err != nil {
			return err
		}
		total += n
	}
	return nil
}

func TestAcceptNewAppendsUnknownSlot(t *testing.T) {
	loop, addr, _ := newTestLoop(t)

	client, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer client.Close()

	time.Sleep(20 * time.Millisecond)
	loop.acceptNew()

	require.Len(t, loop.slots, 1)
}
