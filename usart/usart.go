// usart/usart.go

// Package usart provides an interrupt-driven, buffered USART driver. Each
// physical channel is described by a statically allocated Device that owns
// the channel's register block and one receive and one transmit RingBuffer.
//
// Application code runs in the main context: Transmit queues bytes and
// blocks only while the transmit ring is full; Receive, ReadByte and
// PeekByte never block. The interrupt handlers are the only other users of
// the rings: the TX-empty handler drains the transmit ring onto the wire and
// the RX-data handler fills the receive ring, dropping the oldest unread
// byte when it is full. Each ring therefore has exactly one producer and one
// consumer and no locks are needed. Adding a second caller in either
// context breaks that discipline and needs external synchronisation.
package usart

import (
	"sync/atomic"

	"github.com/jangala-dev/tinygo-usart/hal"
)

// Device is the descriptor of one USART channel. Devices are created once
// at program start and must not be copied.
type Device struct {
	Regs     hal.Registers // register block, owned exclusively
	Platform hal.Platform

	RxBuffer *RingBuffer // filled by the RX-data handler
	TxBuffer *RingBuffer // drained by the TX-empty handler

	Clock    hal.ClockID
	Vectors  hal.Vectors
	Priority uint8

	cfg         Config
	initialized bool

	rxNotify chan struct{} // coalesced RX readiness
	txNotify chan struct{} // coalesced TX progress and drain

	lineErrs lineErrors
	stats    Stats
}

// LineErrors counts receive errors flagged by the hardware.
type LineErrors struct {
	Overrun uint32
	Framing uint32
	Parity  uint32
}

type lineErrors struct {
	overrun atomic.Uint32
	framing atomic.Uint32
	parity  atomic.Uint32
}

func newDevice(regs hal.Registers, platform hal.Platform, clock hal.ClockID, vec hal.Vectors, priority uint8, rxSize, txSize int) *Device {
	return &Device{
		Regs:     regs,
		Platform: platform,
		RxBuffer: NewRingBuffer(rxSize),
		TxBuffer: NewRingBuffer(txSize),
		Clock:    clock,
		Vectors:  vec,
		Priority: priority,
		rxNotify: make(chan struct{}, 1),
		txNotify: make(chan struct{}, 1),
	}
}

// Initialize enables the channel clock, programs the frame format and baud
// divisor from cfg and installs the interrupt handlers at d.Priority. Data
// flow stays disabled until Enable. Zero fields of cfg take their
// DefaultConfig values. Calling Initialize again replaces the configuration
// and leaves the port disabled; queued bytes are kept.
func (d *Device) Initialize(cfg Config) error {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return err
	}
	div, err := BaudDivisor(d.Platform.ClockFrequency(d.Clock), cfg.BaudRate)
	if err != nil {
		return err
	}

	// 1) Clock the peripheral before touching its registers.
	d.Platform.EnableClock(d.Clock)

	// 2) Frame format with every function off, then baud.
	d.Regs.Init(cfg.frame())
	d.Regs.SetDivisor(div)
	d.Regs.ClearStatus(hal.StatusErrors)

	// 3) Handlers. Sources stay masked until Enable/Transmit arm them.
	d.Platform.Install(d.Vectors.RxData, d.Priority, d.handleRxData)
	d.Platform.Install(d.Vectors.RxError, d.Priority, d.handleRxError)
	d.Platform.Install(d.Vectors.TxEmpty, d.Priority, d.handleTxEmpty)
	d.Platform.Install(d.Vectors.TxComplete, d.Priority, d.handleTxComplete)

	d.lineErrs.overrun.Store(0)
	d.lineErrs.framing.Store(0)
	d.lineErrs.parity.Store(0)

	d.cfg = cfg
	d.initialized = true
	return nil
}

// SetBaudRate reprograms the baud divisor for the channel clock. Queued
// bytes are unaffected.
func (d *Device) SetBaudRate(baud uint32) error {
	if !d.initialized {
		return ErrNotInitialized
	}
	div, err := BaudDivisor(d.Platform.ClockFrequency(d.Clock), baud)
	if err != nil {
		return err
	}
	d.Regs.SetDivisor(div)
	d.cfg.BaudRate = baud
	return nil
}

// Config returns the active configuration.
func (d *Device) Config() Config { return d.cfg }

// Channel returns the physical channel d drives.
func (d *Device) Channel() Channel { return ChannelOf(d.Regs) }

// Enable starts the receiver and transmitter and unmasks the receive
// interrupts. Bytes queued while the port was disabled start draining.
func (d *Device) Enable() {
	d.Regs.SetFunction(hal.FuncRx|hal.FuncTx|hal.FuncRxInt, true)
	if d.TxBuffer.Count() > 0 {
		d.armTx()
	}
}

// Disable stops the receiver and transmitter and masks all of the port's
// interrupts. Buffers are not cleared; use ResetRX and ResetTX for that.
func (d *Device) Disable() {
	d.Regs.SetFunction(hal.FuncRx|hal.FuncTx|hal.FuncRxInt|
		hal.FuncTxEmptyInt|hal.FuncTxCompleteInt, false)
}

// DisableAll disables every port on the board.
func DisableAll() {
	for _, d := range ports {
		d.Disable()
	}
}

// Ports returns the board's ports in channel order.
func Ports() []*Device {
	return append([]*Device(nil), ports[:]...)
}

// LineErrors returns the receive error counts since Initialize.
func (d *Device) LineErrors() LineErrors {
	return LineErrors{
		Overrun: d.lineErrs.overrun.Load(),
		Framing: d.lineErrs.framing.Load(),
		Parity:  d.lineErrs.parity.Load(),
	}
}

// notify performs a coalesced, non-blocking send.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
