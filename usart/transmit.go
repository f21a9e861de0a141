// usart/transmit.go

package usart

import (
	"runtime"
	"strconv"

	"github.com/jangala-dev/tinygo-usart/hal"
)

// Transmit queues p for transmission and returns len(p) once every byte is
// in the transmit ring; it does not wait for the wire. While the ring is
// full it spins, yielding the processor, until the TX-empty handler makes
// room. There is no timeout: on a disabled or stalled port it never returns.
func (d *Device) Transmit(p []byte) int {
	for _, b := range p {
		for d.TryTransmitChar(b) == ErrBufferFull {
			d.dbgTxSpin()
			runtime.Gosched()
		}
	}
	return len(p)
}

// TryTransmitChar queues c without waiting. It returns ErrBufferFull when
// the transmit ring has no room.
func (d *Device) TryTransmitChar(c byte) error {
	if !d.TxBuffer.Push(c, false) {
		return ErrBufferFull
	}
	d.armTx()
	return nil
}

// TryTransmit queues as much of p as fits without waiting and returns the
// number of bytes accepted. A return of 0 means "no space now".
func (d *Device) TryTransmit(p []byte) int {
	n := 0
	for n < len(p) && d.TxBuffer.Push(p[n], false) {
		n++
	}
	if n > 0 {
		d.armTx()
	}
	return n
}

// TransmitChar queues a single byte, blocking like Transmit.
func (d *Device) TransmitChar(c byte) {
	buf := [1]byte{c}
	d.Transmit(buf[:])
}

// TransmitString queues s up to, not including, its first NUL byte.
func (d *Device) TransmitString(s string) {
	for i := 0; i < len(s) && s[i] != 0; i++ {
		d.TransmitChar(s[i])
	}
}

// TransmitUdec queues the decimal representation of v.
func (d *Device) TransmitUdec(v uint32) {
	var digits [10]byte
	d.Transmit(strconv.AppendUint(digits[:0], uint64(v), 10))
}

// Write implements io.Writer with the blocking behaviour of Transmit.
func (d *Device) Write(p []byte) (int, error) {
	return d.Transmit(p), nil
}

// WriteByte implements io.ByteWriter with the blocking behaviour of
// Transmit.
func (d *Device) WriteByte(c byte) error {
	d.TransmitChar(c)
	return nil
}

// TxFree returns the free space in the transmit ring.
func (d *Device) TxFree() int { return d.TxBuffer.Free() }

// ResetTX discards bytes queued for transmission. The hardware enable state
// is untouched.
func (d *Device) ResetTX() { d.TxBuffer.Clear() }

// armTx unmasks the TX-empty interrupt unless it is already armed.
func (d *Device) armTx() {
	if !d.Regs.Enabled(hal.FuncTxEmptyInt) {
		d.Regs.SetFunction(hal.FuncTxEmptyInt, true)
	}
}
