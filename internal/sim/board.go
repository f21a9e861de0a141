// Package sim is a host-side model of an HC32F460-style microcontroller
// with four USART register blocks, a peripheral clock gate and a
// single-core non-nesting interrupt controller. It implements hal.Registers and
// hal.Platform so the usart driver runs unmodified in host builds and tests.
package sim

import (
	"fmt"
	"sync"

	"github.com/jangala-dev/tinygo-usart/hal"
)

// Channels is the number of USART register blocks on the board.
const Channels = 4

// PCLK1 is the peripheral clock feeding every USART, in Hz.
const PCLK1 = 50_000_000

// DefaultPriority is the interrupt priority the board's ports are wired
// with. Lower values are more urgent.
const DefaultPriority = 3

// Board is a simulated microcontroller.
type Board struct {
	ctrl   *controller
	blocks [Channels]*Block

	mu     sync.Mutex
	clocks map[hal.ClockID]bool
}

// NewBoard returns a board with every clock gated and no handlers
// installed.
func NewBoard() *Board {
	b := &Board{
		ctrl:   newController(),
		clocks: make(map[hal.ClockID]bool),
	}
	for i := range b.blocks {
		n := i + 1
		b.blocks[i] = newBlock(b, Clock(n), VectorsOf(n))
		b.ctrl.attach(b.blocks[i])
	}
	return b
}

// Clock returns the clock gate of USART channel n (1-based).
func Clock(n int) hal.ClockID {
	return hal.ClockID(1 << (23 + n))
}

// VectorsOf returns the interrupt vectors USART channel n (1-based) is
// routed to.
func VectorsOf(n int) hal.Vectors {
	base := hal.IRQ(10 * n)
	return hal.Vectors{
		RxData:     base,
		TxEmpty:    base + 1,
		RxError:    base + 2,
		TxComplete: base + 3,
	}
}

// USART returns register block n (1-based).
func (b *Board) USART(n int) *Block {
	if n < 1 || n > Channels {
		panic(fmt.Sprintf("sim: no USART%d", n))
	}
	return b.blocks[n-1]
}

// EnableClock implements hal.Platform.
func (b *Board) EnableClock(id hal.ClockID) {
	b.mu.Lock()
	b.clocks[id] = true
	b.mu.Unlock()
}

// ClockEnabled reports whether the clock gate id is open.
func (b *Board) ClockEnabled(id hal.ClockID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clocks[id]
}

// ClockFrequency implements hal.Platform.
func (b *Board) ClockFrequency(hal.ClockID) uint32 {
	return PCLK1
}

// Install implements hal.Platform.
func (b *Board) Install(irq hal.IRQ, priority uint8, handler func()) {
	b.ctrl.install(irq, priority, handler)
}

// Connect wires the transmit line of USART from to the receive line of
// USART to. Connecting a channel to itself forms a loopback.
func (b *Board) Connect(from, to int) {
	dst := b.USART(to)
	b.USART(from).OnWire(dst.Deliver)
}

// Trace turns recording of dispatched interrupt vectors on or off and
// discards what was recorded so far.
func (b *Board) Trace(on bool) {
	b.ctrl.traceMu.Lock()
	b.ctrl.tracing = on
	b.ctrl.trace = nil
	b.ctrl.traceMu.Unlock()
}

// Dispatched returns the interrupt vectors serviced while tracing, in
// order.
func (b *Board) Dispatched() []hal.IRQ {
	b.ctrl.traceMu.Lock()
	defer b.ctrl.traceMu.Unlock()
	return append([]hal.IRQ(nil), b.ctrl.trace...)
}
