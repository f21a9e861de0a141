// usart/interrupt.go

package usart

import "github.com/jangala-dev/tinygo-usart/hal"

// --- interrupt handlers ---
//
// These run in interrupt context, installed by Initialize. They are the
// consumer of TxBuffer and the producer of RxBuffer and must never block.

// Interrupt sources, as indexes into the debug counters.
const (
	srcRxData = iota
	srcTxEmpty
	srcRxError
	srcTxComplete
)

// handleTxEmpty moves one byte from the transmit ring to the data register.
// When the ring is empty it swaps the TX-empty source for TX-complete so
// the hardware signals once more when the shift register has drained.
func (d *Device) handleTxEmpty() {
	d.dbgIRQ(srcTxEmpty)
	if b, ok := d.TxBuffer.Pop(); ok {
		hookTx(b, ChannelOf(d.Regs))
		d.Regs.WriteData(b)
		notify(d.txNotify)
		return
	}
	d.Regs.SetFunction(hal.FuncTxEmptyInt, false)
	// Transmit may have queued a byte after the Pop above and seen the
	// source still armed.
	if d.TxBuffer.Count() > 0 {
		d.Regs.SetFunction(hal.FuncTxEmptyInt, true)
		return
	}
	d.Regs.SetFunction(hal.FuncTxCompleteInt, true)
}

// handleTxComplete fires once after the last byte left the shift register.
func (d *Device) handleTxComplete() {
	d.dbgIRQ(srcTxComplete)
	d.Regs.SetFunction(hal.FuncTxCompleteInt, false)
	notify(d.txNotify)
}

// handleRxData moves the received byte into the receive ring, overwriting
// the oldest unread byte when the ring is full.
func (d *Device) handleRxData() {
	d.dbgIRQ(srcRxData)
	b := d.Regs.ReadData()
	hookRx(b, ChannelOf(d.Regs))
	full := d.RxBuffer.Count() == d.RxBuffer.Size()
	d.RxBuffer.Push(b, true)
	d.dbgRxByte(full)
	notify(d.rxNotify)
}

// handleRxError records overrun, framing and parity flags, then clears
// every error flag whether or not one was seen, so the source cannot stay
// asserted. A byte received with a framing or parity error is still
// delivered by handleRxData.
func (d *Device) handleRxError() {
	d.dbgIRQ(srcRxError)
	s := d.Regs.Status() & hal.StatusErrors
	if s&hal.StatusOverrun != 0 {
		d.lineErrs.overrun.Add(1)
	}
	if s&hal.StatusFraming != 0 {
		d.lineErrs.framing.Add(1)
	}
	if s&hal.StatusParity != 0 {
		d.lineErrs.parity.Add(1)
	}
	d.Regs.ClearStatus(hal.StatusErrors)
}
