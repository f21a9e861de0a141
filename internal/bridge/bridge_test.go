//go:build linux

package bridge

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// fakeLine records delivered bytes and lets the test play the transmitter.
type fakeLine struct {
	mu     sync.Mutex
	onWire func(byte)
	rxCh   chan byte
}

func newFakeLine() *fakeLine { return &fakeLine{rxCh: make(chan byte, 64)} }

func (l *fakeLine) Deliver(v byte) { l.rxCh <- v }

func (l *fakeLine) OnWire(fn func(byte)) {
	l.mu.Lock()
	l.onWire = fn
	l.mu.Unlock()
}

func (l *fakeLine) RxIdle() bool { return true }

func (l *fakeLine) transmit(p []byte) bool {
	l.mu.Lock()
	fn := l.onWire
	l.mu.Unlock()
	if fn == nil {
		return false
	}
	for _, v := range p {
		fn(v)
	}
	return true
}

func startBridge(t *testing.T, line Line) (*Bridge, *os.File, chan error) {
	t.Helper()
	b, err := Open(line, 115200)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	client, err := os.OpenFile(b.Name(), os.O_RDWR|unix.O_NOCTTY, 0)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	return b, client, done
}

func TestBridge_HostToReceiver(t *testing.T) {
	line := newFakeLine()
	_, client, _ := startBridge(t, line)

	_, err := client.Write([]byte("ping\n"))
	require.NoError(t, err)

	var got []byte
	for len(got) < 5 {
		select {
		case v := <-line.rxCh:
			got = append(got, v)
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for receiver, got %q", got)
		}
	}
	assert.Equal(t, "ping\n", string(got), "raw mode passes bytes untranslated")
}

func TestBridge_TransmitterToHost(t *testing.T) {
	line := newFakeLine()
	_, client, _ := startBridge(t, line)

	require.Eventually(t, func() bool { return line.transmit([]byte("pong\r\n")) },
		time.Second, time.Millisecond)

	got := make(chan []byte, 1)
	errs := make(chan error, 1)
	go func() {
		var acc []byte
		buf := make([]byte, 64)
		for len(acc) < 6 {
			n, err := client.Read(buf)
			if err != nil {
				errs <- err
				return
			}
			acc = append(acc, buf[:n]...)
		}
		got <- acc
	}()

	select {
	case b := <-got:
		assert.Equal(t, "pong\r\n", string(b))
	case err := <-errs:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for host to receive")
	}
}

func TestBridge_RunStopsOnCancel(t *testing.T) {
	line := newFakeLine()
	b, err := Open(line, 9600)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	line.mu.Lock()
	defer line.mu.Unlock()
	assert.Nil(t, line.onWire, "observer removed on exit")
}

func TestOpen_RejectsZeroBaud(t *testing.T) {
	_, err := Open(newFakeLine(), 0)
	assert.Error(t, err)
}
