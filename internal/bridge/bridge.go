//go:build linux

// Package bridge exposes the far end of a simulated USART line on a
// pseudo-terminal, so ordinary host programs (terminal emulators, serial
// tools) can talk to code running against the simulated board.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// Line is the peer side of a USART: bytes given to Deliver arrive at the
// receiver, and OnWire observes what the transmitter sends.
type Line interface {
	Deliver(v byte)
	OnWire(fn func(byte))
	RxIdle() bool
}

var errStopped = errors.New("bridge: stopped")

// Bridge pumps bytes between a Line and a pty master.
type Bridge struct {
	line     Line
	charTime time.Duration

	master *os.File
	slave  *os.File
	fd     int

	out     chan byte
	dropped atomic.Uint64

	pipeR, pipeW int
	stopOnce     sync.Once
	closeOnce    sync.Once
}

// Open allocates a pty in raw mode for line. baud sets the pacing of bytes
// fed to the receiver: a byte waits at most one character time (10 bits)
// for the receive register to drain.
func Open(line Line, baud uint32) (*Bridge, error) {
	if baud == 0 {
		return nil, fmt.Errorf("bridge: baud must be positive")
	}
	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("open pty: %w", err)
	}
	if err := makeRaw(int(slave.Fd())); err != nil {
		master.Close()
		slave.Close()
		return nil, err
	}

	pipeFds := make([]int, 2)
	if err := unix.Pipe(pipeFds); err != nil {
		master.Close()
		slave.Close()
		return nil, fmt.Errorf("pipe: %w", err)
	}

	return &Bridge{
		line:     line,
		charTime: 10 * time.Second / time.Duration(baud),
		master:   master,
		slave:    slave,
		fd:       int(master.Fd()),
		out:      make(chan byte, 4096),
		pipeR:    pipeFds[0],
		pipeW:    pipeFds[1],
	}, nil
}

// makeRaw puts the tty behind fd into raw 8-bit mode with blocking
// single-byte reads.
func makeRaw(fd int) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cflag &^= unix.CSIZE | unix.PARENB
	termios.Cflag |= unix.CS8
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return fmt.Errorf("set termios: %w", err)
	}
	return nil
}

// Name returns the path of the pty slave that host programs open.
func (b *Bridge) Name() string { return b.slave.Name() }

// Dropped returns how many transmitted bytes were discarded because the
// host side was not keeping up.
func (b *Bridge) Dropped() uint64 { return b.dropped.Load() }

// Run pumps bytes in both directions until ctx is done or the pty fails.
// It returns nil after a cancellation.
func (b *Bridge) Run(ctx context.Context) error {
	b.line.OnWire(func(v byte) {
		select {
		case b.out <- v:
		default:
			b.dropped.Add(1)
		}
	})
	defer b.line.OnWire(nil)

	g, ctx := errgroup.WithContext(ctx)

	// pty -> receiver
	g.Go(func() error {
		buf := make([]byte, 256)
		for {
			n, err := b.read(buf)
			if err != nil {
				return err
			}
			for _, v := range buf[:n] {
				b.pace()
				b.line.Deliver(v)
			}
		}
	})

	// transmitter -> pty
	g.Go(func() error {
		buf := make([]byte, 0, 256)
		for {
			select {
			case <-ctx.Done():
				return nil
			case v := <-b.out:
				buf = append(buf[:0], v)
			drain:
				for len(buf) < cap(buf) {
					select {
					case v := <-b.out:
						buf = append(buf, v)
					default:
						break drain
					}
				}
				if _, err := b.master.Write(buf); err != nil {
					return fmt.Errorf("write pty: %w", err)
				}
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		b.stop()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errStopped) {
		return err
	}
	return nil
}

// pace waits up to one character time for the receive register to drain.
func (b *Bridge) pace() {
	deadline := time.Now().Add(b.charTime)
	for !b.line.RxIdle() && time.Now().Before(deadline) {
		runtime.Gosched()
	}
}

// read blocks until the master has data or the bridge is stopped.
func (b *Bridge) read(buf []byte) (int, error) {
	for {
		pfd := []unix.PollFd{
			{Fd: int32(b.fd), Events: unix.POLLIN},
			{Fd: int32(b.pipeR), Events: unix.POLLIN},
		}
		if _, err := unix.Poll(pfd, -1); err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return 0, fmt.Errorf("poll: %w", err)
		}
		if pfd[1].Revents&unix.POLLIN != 0 {
			return 0, errStopped
		}
		if pfd[0].Revents&(unix.POLLIN|unix.POLLHUP) != 0 {
			n, err := unix.Read(b.fd, buf)
			if err != nil {
				if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
					continue
				}
				return 0, fmt.Errorf("read pty: %w", err)
			}
			return n, nil
		}
	}
}

func (b *Bridge) stop() {
	b.stopOnce.Do(func() {
		unix.Write(b.pipeW, []byte{0})
	})
}

// Close stops Run and releases the pty.
func (b *Bridge) Close() error {
	b.stop()
	var err error
	b.closeOnce.Do(func() {
		err = errors.Join(b.master.Close(), b.slave.Close())
		unix.Close(b.pipeR)
		unix.Close(b.pipeW)
	})
	return err
}
