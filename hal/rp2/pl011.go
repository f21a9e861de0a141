// hal/rp2/pl011.go

//go:build rp2040 || rp2350

// Package rp2 drives the two PL011 UARTs of the RP2040/RP2350 through the
// hal interfaces. The FIFOs are disabled so the data register behaves as the
// single transmit and receive holding register the usart driver expects.
// Each PL011 has one NVIC line; its handler demultiplexes the masked
// interrupt status into the four logical vectors of hal.Vectors.
package rp2

import (
	"device/rp"
	"machine"
	"runtime/interrupt"
	"runtime/volatile"

	"github.com/jangala-dev/tinygo-usart/hal"
)

// DefaultPriority is the NVIC priority used by the board's ports.
const DefaultPriority = 0x80

const (
	slotRxData = iota
	slotTxEmpty
	slotRxError
	slotTxComplete
	numSlots
)

const (
	imscRx = rp.UART0_UARTIMSC_RXIM | rp.UART0_UARTIMSC_OEIM | rp.UART0_UARTIMSC_BEIM |
		rp.UART0_UARTIMSC_PEIM | rp.UART0_UARTIMSC_FEIM
	misErr = rp.UART0_UARTMIS_OEMIS | rp.UART0_UARTMIS_BEMIS |
		rp.UART0_UARTMIS_PEMIS | rp.UART0_UARTMIS_FEMIS
)

// UART is a PL011 register block.
type UART struct {
	Bus      *rp.UART0_Type
	reset    uint32
	index    int
	irq      interrupt.Interrupt
	handlers [numSlots]func()

	// The PL011 has no transmit-complete interrupt; dispatch emulates it.
	tcArmed volatile.Register8
}

var (
	UART0 = &UART{Bus: rp.UART0, reset: rp.RESETS_RESET_UART0, index: 0}
	UART1 = &UART{Bus: rp.UART1, reset: rp.RESETS_RESET_UART1, index: 1}
)

func init() {
	UART0.irq = interrupt.New(rp.IRQ_UART0_IRQ, func(interrupt.Interrupt) { UART0.dispatch() })
	UART1.irq = interrupt.New(rp.IRQ_UART1_IRQ, func(interrupt.Interrupt) { UART1.dispatch() })
}

// Clock returns the reset line of UART n, which doubles as its clock gate.
func Clock(n int) hal.ClockID {
	if n == 0 {
		return hal.ClockID(rp.RESETS_RESET_UART0)
	}
	return hal.ClockID(rp.RESETS_RESET_UART1)
}

// VectorsOf returns the logical vectors of UART n.
func VectorsOf(n int) hal.Vectors {
	base := hal.IRQ(100 + numSlots*n)
	return hal.Vectors{
		RxData:     base + slotRxData,
		TxEmpty:    base + slotTxEmpty,
		RxError:    base + slotRxError,
		TxComplete: base + slotTxComplete,
	}
}

// SetPins muxes tx and rx to the UART function.
func (u *UART) SetPins(tx, rx machine.Pin) {
	if tx != machine.NoPin {
		tx.Configure(machine.PinConfig{Mode: machine.PinUART})
	}
	if rx != machine.NoPin {
		rx.Configure(machine.PinConfig{Mode: machine.PinUART})
	}
}

// Init implements hal.Registers. It disables the UART, writes the full
// LCR_H with FIFOs off, clears pending interrupts and purges the receiver.
func (u *UART) Init(f hal.Frame) {
	u.Bus.UARTCR.ClearBits(rp.UART0_UARTCR_UARTEN | rp.UART0_UARTCR_RXE | rp.UART0_UARTCR_TXE)
	u.Bus.UARTIMSC.Set(0)
	u.tcArmed.Set(0)

	var pen, eps uint32
	if f.Parity != hal.ParityNone {
		pen = rp.UART0_UARTLCR_H_PEN
		if f.Parity == hal.ParityEven {
			eps = rp.UART0_UARTLCR_H_EPS
		}
	}
	u.Bus.UARTLCR_H.Set(uint32(f.DataBits-5)<<rp.UART0_UARTLCR_H_WLEN_Pos |
		uint32(f.StopBits-1)<<rp.UART0_UARTLCR_H_STP2_Pos | pen | eps)

	u.Bus.UARTIFLS.Set(0)
	u.Bus.UARTICR.Set(0x7FF)
	for !u.Bus.UARTFR.HasBits(rp.UART0_UARTFR_RXFE) {
		_ = u.Bus.UARTDR.Get()
	}
	u.Bus.UARTRSR.Set(0)
}

// SetDivisor implements hal.Registers.
func (u *UART) SetDivisor(d hal.Divisor) {
	u.Bus.UARTIBRD.Set(d.Integer)
	u.Bus.UARTFBRD.Set(d.Fraction)
	// PL011 requires an LCR_H write after changing divisors.
	u.Bus.UARTLCR_H.Set(u.Bus.UARTLCR_H.Get())
}

// SetFunction implements hal.Registers.
func (u *UART) SetFunction(f hal.Function, enable bool) {
	var cr, imsc uint32
	if f&hal.FuncRx != 0 {
		cr |= rp.UART0_UARTCR_RXE
	}
	if f&hal.FuncTx != 0 {
		cr |= rp.UART0_UARTCR_TXE
	}
	if f&hal.FuncRxInt != 0 {
		imsc |= imscRx
	}
	if f&hal.FuncTxEmptyInt != 0 {
		imsc |= rp.UART0_UARTIMSC_TXIM
	}

	if enable {
		u.Bus.UARTCR.SetBits(cr)
		u.Bus.UARTIMSC.SetBits(imsc)
		if f&hal.FuncTxCompleteInt != 0 {
			u.tcArmed.Set(1)
		}
	} else {
		u.Bus.UARTIMSC.ClearBits(imsc)
		u.Bus.UARTCR.ClearBits(cr)
		if f&hal.FuncTxCompleteInt != 0 {
			u.tcArmed.Set(0)
		}
	}

	if u.Bus.UARTCR.HasBits(rp.UART0_UARTCR_RXE) || u.Bus.UARTCR.HasBits(rp.UART0_UARTCR_TXE) {
		u.Bus.UARTCR.SetBits(rp.UART0_UARTCR_UARTEN)
	} else {
		u.Bus.UARTCR.ClearBits(rp.UART0_UARTCR_UARTEN)
	}
}

// Enabled implements hal.Registers.
func (u *UART) Enabled(f hal.Function) bool {
	on := true
	if f&hal.FuncRx != 0 {
		on = on && u.Bus.UARTCR.HasBits(rp.UART0_UARTCR_RXE)
	}
	if f&hal.FuncTx != 0 {
		on = on && u.Bus.UARTCR.HasBits(rp.UART0_UARTCR_TXE)
	}
	if f&hal.FuncRxInt != 0 {
		on = on && u.Bus.UARTIMSC.HasBits(rp.UART0_UARTIMSC_RXIM)
	}
	if f&hal.FuncTxEmptyInt != 0 {
		on = on && u.Bus.UARTIMSC.HasBits(rp.UART0_UARTIMSC_TXIM)
	}
	if f&hal.FuncTxCompleteInt != 0 {
		on = on && u.tcArmed.Get() != 0
	}
	return on
}

// Status implements hal.Registers.
func (u *UART) Status() hal.Status {
	var s hal.Status
	fr := u.Bus.UARTFR.Get()
	if fr&rp.UART0_UARTFR_RXFE == 0 {
		s |= hal.StatusRxNotEmpty
	}
	if fr&rp.UART0_UARTFR_TXFE != 0 {
		s |= hal.StatusTxEmpty
		if fr&rp.UART0_UARTFR_BUSY == 0 {
			s |= hal.StatusTxComplete
		}
	}
	// RSR describes the character last read from DR, so errors come from
	// the raw interrupt status, which latches until ICR is written. A break
	// is counted as a framing error.
	ris := u.Bus.UARTRIS.Get()
	if ris&rp.UART0_UARTRIS_OERIS != 0 {
		s |= hal.StatusOverrun
	}
	if ris&(rp.UART0_UARTRIS_FERIS|rp.UART0_UARTRIS_BERIS) != 0 {
		s |= hal.StatusFraming
	}
	if ris&rp.UART0_UARTRIS_PERIS != 0 {
		s |= hal.StatusParity
	}
	return s
}

// ClearStatus implements hal.Registers. Any error bit in s clears all four
// error interrupts (overrun, break, parity, framing) together with the
// receive status register; TX complete clears itself on the next write.
func (u *UART) ClearStatus(s hal.Status) {
	if s&hal.StatusErrors != 0 {
		u.Bus.UARTRSR.Set(0)
		u.Bus.UARTICR.Set(rp.UART0_UARTICR_OEIC | rp.UART0_UARTICR_BEIC |
			rp.UART0_UARTICR_PEIC | rp.UART0_UARTICR_FEIC)
	}
}

// WriteData implements hal.Registers.
func (u *UART) WriteData(b byte) { u.Bus.UARTDR.Set(uint32(b)) }

// ReadData implements hal.Registers.
func (u *UART) ReadData() byte { return byte(u.Bus.UARTDR.Get() & 0xFF) }

// dispatch services the UART's NVIC line.
func (u *UART) dispatch() {
	mis := u.Bus.UARTMIS.Get()
	if mis&misErr != 0 {
		u.call(slotRxError)
	}
	if mis&rp.UART0_UARTMIS_RXMIS != 0 {
		u.call(slotRxData)
	}
	if mis&rp.UART0_UARTMIS_TXMIS != 0 {
		u.call(slotTxEmpty)
	}
	if u.tcArmed.Get() != 0 {
		// Wait out the final character (one frame time) in place of the
		// missing interrupt.
		for u.Bus.UARTFR.HasBits(rp.UART0_UARTFR_BUSY) {
		}
		u.call(slotTxComplete)
	}
}

func (u *UART) call(slot int) {
	if h := u.handlers[slot]; h != nil {
		h()
	}
}

// Platform implements hal.Platform for the RP2040/RP2350.
type Platform struct{}

// Board is the platform instance.
var Board Platform

// EnableClock cycles the peripheral reset named by id, which on RP2 also
// ungates its clock.
func (Platform) EnableClock(id hal.ClockID) {
	mask := uint32(id)
	rp.RESETS.RESET.SetBits(mask)
	rp.RESETS.RESET.ClearBits(mask)
	for !rp.RESETS.RESET_DONE.HasBits(mask) {
	}
}

// ClockFrequency returns the peripheral clock, which TinyGo runs at the
// system clock.
func (Platform) ClockFrequency(hal.ClockID) uint32 {
	return machine.CPUFrequency()
}

// Install implements hal.Platform. All four vectors of a UART share its
// NVIC line, so the priority applies to the line.
func (Platform) Install(irq hal.IRQ, priority uint8, handler func()) {
	for _, u := range [...]*UART{UART0, UART1} {
		base := VectorsOf(u.index).RxData
		if irq < base || irq >= base+numSlots {
			continue
		}
		u.handlers[irq-base] = handler
		u.irq.SetPriority(priority)
		u.irq.Enable()
		return
	}
}
