// Package hal describes the hardware capabilities the usart driver consumes:
// a USART register block and the platform services (clock gating, interrupt
// installation) around it. Concrete implementations live in hal/rp2 for
// RP2040/RP2350 targets and in internal/sim for host builds.
package hal

// ClockID identifies a peripheral clock gate.
type ClockID uint32

// IRQ identifies an interrupt vector.
type IRQ int16

// Vectors are the four interrupt sources of one USART channel.
type Vectors struct {
	RxData     IRQ // receive data register not empty
	TxEmpty    IRQ // transmit data register empty
	RxError    IRQ // overrun, framing or parity error
	TxComplete IRQ // shift register drained
}

// Function is a bit set of USART control functions.
type Function uint8

const (
	FuncRx            Function = 1 << iota // receiver clocked
	FuncTx                                 // transmitter clocked
	FuncRxInt                              // RX data and RX error interrupts
	FuncTxEmptyInt                         // TX data register empty interrupt
	FuncTxCompleteInt                      // TX complete interrupt
)

// Status is a bit set of USART status flags.
type Status uint8

const (
	StatusRxNotEmpty Status = 1 << iota
	StatusTxEmpty
	StatusTxComplete
	StatusOverrun
	StatusFraming
	StatusParity
)

// StatusErrors masks the receive error flags.
const StatusErrors = StatusOverrun | StatusFraming | StatusParity

// Parity selects parity generation and checking.
type Parity uint8

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

// Frame is the character format.
type Frame struct {
	DataBits uint8
	StopBits uint8
	Parity   Parity
}

// Divisor is an integer plus 1/64 fractional baud divisor.
type Divisor struct {
	Integer  uint32
	Fraction uint32
}

// Registers is the register block of a single USART peripheral.
type Registers interface {
	// Init programs the frame format and leaves every function disabled.
	Init(f Frame)
	SetDivisor(d Divisor)
	SetFunction(f Function, enable bool)
	// Enabled reports whether all functions in f are enabled.
	Enabled(f Function) bool
	Status() Status
	ClearStatus(s Status)
	WriteData(b byte)
	ReadData() byte
}

// Platform provides the SoC services around a register block.
type Platform interface {
	EnableClock(id ClockID)
	ClockFrequency(id ClockID) uint32
	// Install binds handler to irq at priority and enables the vector,
	// replacing any previous handler. Lower values are more urgent.
	Install(irq IRQ, priority uint8, handler func())
}
