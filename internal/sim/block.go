package sim

import (
	"sync"

	"github.com/jangala-dev/tinygo-usart/hal"
)

// Block is a simulated USART register block. The transmit side is a single
// data register in front of an instantaneous shifter: unless the line is
// held, a byte written to the data register appears on the wire at once.
// The receive side is a single data register; a byte arriving while the
// previous one is unread is lost and raises the overrun flag.
type Block struct {
	board *Board
	clock hal.ClockID
	vec   hal.Vectors

	mu      sync.Mutex
	funcs   hal.Function
	status  hal.Status
	frame   hal.Frame
	div     hal.Divisor
	rdr     byte
	tdr     byte
	tdrFull bool
	held    bool
	wire    []byte
	capture bool
	outq    []byte
	onWire  func(byte)
	sending bool
	dropped int
}

func newBlock(board *Board, clock hal.ClockID, vec hal.Vectors) *Block {
	return &Block{
		board:   board,
		clock:   clock,
		vec:     vec,
		status:  hal.StatusTxEmpty | hal.StatusTxComplete,
		capture: true,
	}
}

// powered reports whether the block's clock gate is open. Register writes
// to an unclocked block are ignored, reads return zero.
func (b *Block) powered() bool {
	return b.board.ClockEnabled(b.clock)
}

// Init implements hal.Registers.
func (b *Block) Init(f hal.Frame) {
	if !b.powered() {
		return
	}
	b.mu.Lock()
	b.funcs = 0
	b.frame = f
	b.rdr = 0
	b.tdrFull = false
	b.status = hal.StatusTxEmpty | hal.StatusTxComplete
	b.mu.Unlock()
	b.board.ctrl.kick()
}

// SetDivisor implements hal.Registers.
func (b *Block) SetDivisor(d hal.Divisor) {
	if !b.powered() {
		return
	}
	b.mu.Lock()
	b.div = d
	b.mu.Unlock()
}

// SetFunction implements hal.Registers.
func (b *Block) SetFunction(f hal.Function, enable bool) {
	if !b.powered() {
		return
	}
	b.mu.Lock()
	if enable {
		b.funcs |= f
	} else {
		b.funcs &^= f
	}
	b.shiftLocked()
	b.mu.Unlock()
	b.flushWire()
	b.board.ctrl.kick()
}

// Enabled implements hal.Registers.
func (b *Block) Enabled(f hal.Function) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.funcs&f == f
}

// Status implements hal.Registers.
func (b *Block) Status() hal.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// ClearStatus implements hal.Registers. Only the error flags and TX
// complete are software-clearable.
func (b *Block) ClearStatus(s hal.Status) {
	b.mu.Lock()
	b.status &^= s & (hal.StatusErrors | hal.StatusTxComplete)
	b.mu.Unlock()
	b.board.ctrl.kick()
}

// WriteData implements hal.Registers.
func (b *Block) WriteData(v byte) {
	if !b.powered() {
		return
	}
	b.mu.Lock()
	b.tdr = v
	b.tdrFull = true
	b.status &^= hal.StatusTxEmpty | hal.StatusTxComplete
	b.shiftLocked()
	b.mu.Unlock()
	b.flushWire()
	b.board.ctrl.kick()
}

// ReadData implements hal.Registers.
func (b *Block) ReadData() byte {
	b.mu.Lock()
	v := b.rdr
	b.status &^= hal.StatusRxNotEmpty
	b.mu.Unlock()
	b.board.ctrl.kick()
	return v
}

// shiftLocked moves the transmit data register onto the wire when the
// transmitter is clocked and the line is not held.
func (b *Block) shiftLocked() {
	if !b.tdrFull || b.held || b.funcs&hal.FuncTx == 0 {
		return
	}
	v := b.tdr
	b.tdrFull = false
	b.status |= hal.StatusTxEmpty | hal.StatusTxComplete
	if b.capture {
		b.wire = append(b.wire, v)
	}
	if b.onWire != nil {
		b.outq = append(b.outq, v)
	}
}

// flushWire hands shifted bytes to the OnWire observer in wire order. Only
// one goroutine delivers at a time; a reentrant or concurrent caller leaves
// its bytes queued for the active one.
func (b *Block) flushWire() {
	for {
		b.mu.Lock()
		if b.sending || len(b.outq) == 0 {
			b.mu.Unlock()
			return
		}
		b.sending = true
		q, fn := b.outq, b.onWire
		b.outq = nil
		b.mu.Unlock()

		for _, v := range q {
			if fn != nil {
				fn(v)
			}
		}

		b.mu.Lock()
		b.sending = false
		b.mu.Unlock()
	}
}

// line is an asserted interrupt source. Among sources of equal priority a
// lower rank is serviced first, so receivers drain before transmitters
// refill a looped-back wire.
type line struct {
	irq  hal.IRQ
	rank int
}

// pending lists the asserted interrupt lines.
func (b *Block) pending() []line {
	b.mu.Lock()
	defer b.mu.Unlock()
	var lines []line
	if b.funcs&hal.FuncRx != 0 && b.funcs&hal.FuncRxInt != 0 {
		if b.status&hal.StatusErrors != 0 {
			lines = append(lines, line{b.vec.RxError, 0})
		}
		if b.status&hal.StatusRxNotEmpty != 0 {
			lines = append(lines, line{b.vec.RxData, 1})
		}
	}
	if b.funcs&hal.FuncTx != 0 {
		if b.funcs&hal.FuncTxCompleteInt != 0 && b.status&hal.StatusTxComplete != 0 {
			lines = append(lines, line{b.vec.TxComplete, 2})
		}
		if b.funcs&hal.FuncTxEmptyInt != 0 && b.status&hal.StatusTxEmpty != 0 {
			lines = append(lines, line{b.vec.TxEmpty, 3})
		}
	}
	return lines
}

// Deliver puts a byte on the receive line.
func (b *Block) Deliver(v byte) {
	b.DeliverWithError(v, 0)
}

// DeliverWithError puts a byte on the receive line together with the
// framing and/or parity flags in errs.
func (b *Block) DeliverWithError(v byte, errs hal.Status) {
	if !b.powered() {
		return
	}
	b.mu.Lock()
	switch {
	case b.funcs&hal.FuncRx == 0:
		b.dropped++
	case b.status&hal.StatusRxNotEmpty != 0:
		b.dropped++
		b.status |= hal.StatusOverrun
	default:
		b.rdr = v
		b.status |= hal.StatusRxNotEmpty | errs&(hal.StatusFraming|hal.StatusParity)
	}
	b.mu.Unlock()
	b.board.ctrl.kick()
}

// RxIdle reports whether the receive data register is empty, so a byte
// delivered now cannot overrun.
func (b *Block) RxIdle() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status&hal.StatusRxNotEmpty == 0
}

// DeliverAll puts p on the receive line byte by byte.
func (b *Block) DeliverAll(p []byte) {
	for _, v := range p {
		b.Deliver(v)
	}
}

// Hold stalls the transmitter after the byte currently on the wire, as a
// peer that stops draining would.
func (b *Block) Hold() {
	b.mu.Lock()
	b.held = true
	b.mu.Unlock()
}

// Release resumes the transmitter.
func (b *Block) Release() {
	b.mu.Lock()
	b.held = false
	b.shiftLocked()
	b.mu.Unlock()
	b.flushWire()
	b.board.ctrl.kick()
}

// OnWire registers fn to observe every transmitted byte. It is called from
// whichever goroutine drove the transmitter, outside the block's lock.
func (b *Block) OnWire(fn func(byte)) {
	b.mu.Lock()
	b.onWire = fn
	b.mu.Unlock()
}

// Capture turns recording of transmitted bytes for Wire on or off.
func (b *Block) Capture(on bool) {
	b.mu.Lock()
	b.capture = on
	if !on {
		b.wire = nil
	}
	b.mu.Unlock()
}

// Wire returns a copy of everything transmitted since the last ResetWire.
func (b *Block) Wire() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.wire...)
}

// ResetWire discards the captured transmit history.
func (b *Block) ResetWire() {
	b.mu.Lock()
	b.wire = nil
	b.mu.Unlock()
}

// Dropped counts received bytes the hardware lost (receiver disabled or
// overrun).
func (b *Block) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Frame returns the programmed frame format.
func (b *Block) Frame() hal.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frame
}

// Divisor returns the programmed baud divisor.
func (b *Block) Divisor() hal.Divisor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.div
}
