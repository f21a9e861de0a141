// usart/blocking.go

package usart

import (
	"context"
	"time"

	"github.com/jangala-dev/tinygo-usart/hal"
)

// Readable returns a coalesced notification for RX readiness. The RX-data
// handler sends on it after queueing a byte; callers must re-check state
// after waking.
func (d *Device) Readable() <-chan struct{} { return d.rxNotify }

// Writable returns a coalesced notification for TX progress. The TX-empty
// handler sends on it after moving a byte to the hardware and the
// TX-complete handler after the line drained; callers must re-check state
// after waking.
func (d *Device) Writable() <-chan struct{} { return d.txNotify }

// WaitReadable blocks until data is available or ctx is done.
func (d *Device) WaitReadable(ctx context.Context) error {
	for {
		if d.Available() > 0 {
			return nil
		}
		select {
		case <-d.rxNotify:
			// re-check; the notification is coalesced
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ReadContext blocks until at least one byte is available, then reads up
// to len(p).
func (d *Device) ReadContext(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if n := d.Receive(p); n > 0 {
			return n, nil
		}
		if err := d.WaitReadable(ctx); err != nil {
			return 0, err
		}
	}
}

// ReadByteContext blocks for a single byte or until ctx is done.
func (d *Device) ReadByteContext(ctx context.Context) (byte, error) {
	for {
		if b, err := d.ReadByte(); err == nil {
			return b, nil
		}
		if err := d.WaitReadable(ctx); err != nil {
			return 0, err
		}
	}
}

// Flush blocks until every queued byte has left the shift register or ctx
// is done. It wakes on TX-complete and falls back to a short poll, since a
// byte queued between checks only produces TX-empty interrupts.
func (d *Device) Flush(ctx context.Context) error {
	tick := d.drainTick()
	for {
		if d.TxBuffer.Count() == 0 && d.Regs.Status()&hal.StatusTxComplete != 0 {
			return nil
		}
		select {
		case <-d.txNotify:
			// Progress likely occurred; loop and re-check.
		case <-time.After(tick):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drainTick is how long Flush sleeps between checks when no TX-complete
// wake arrives: two frames of the active configuration, at least 20µs.
func (d *Device) drainTick() time.Duration {
	if d.cfg.BaudRate == 0 {
		return 50 * time.Microsecond
	}
	bits := 1 + uint32(d.cfg.DataBits) + uint32(d.cfg.StopBits)
	if d.cfg.Parity != ParityNone {
		bits++
	}
	frame := time.Duration(bits) * time.Second / time.Duration(d.cfg.BaudRate)
	return max(2*frame, 20*time.Microsecond)
}
