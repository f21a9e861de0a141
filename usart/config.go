package usart

import "github.com/jangala-dev/tinygo-usart/hal"

// Config is a port's line configuration. It is replaced wholesale by
// Initialize.
type Config struct {
	BaudRate uint32
	DataBits uint8
	StopBits uint8
	Parity   Parity
}

// DefaultConfig returns 115200 baud, 8N1.
func DefaultConfig() Config {
	return Config{
		BaudRate: 115200,
		DataBits: 8,
		StopBits: 1,
		Parity:   ParityNone,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BaudRate == 0 {
		c.BaudRate = d.BaudRate
	}
	if c.DataBits == 0 {
		c.DataBits = d.DataBits
	}
	if c.StopBits == 0 {
		c.StopBits = d.StopBits
	}
	return c
}

func (c Config) validate() error {
	if c.DataBits < 5 || c.DataBits > 8 {
		return ErrInvalidConfig
	}
	if c.StopBits != 1 && c.StopBits != 2 {
		return ErrInvalidConfig
	}
	if c.Parity > ParityOdd {
		return ErrInvalidConfig
	}
	return nil
}

func (c Config) frame() hal.Frame {
	return hal.Frame{DataBits: c.DataBits, StopBits: c.StopBits, Parity: c.Parity}
}

// BaudDivisor computes the integer and 1/64 fractional divisor that derives
// baud from a clockHz peripheral clock with 16x oversampling, clamped to the
// register range.
func BaudDivisor(clockHz, baud uint32) (hal.Divisor, error) {
	if baud == 0 || clockHz == 0 {
		return hal.Divisor{}, ErrInvalidBaudRate
	}
	div := 8 * uint64(clockHz) / uint64(baud)

	ibrd := uint32(div >> 7)
	var fbrd uint32
	switch {
	case ibrd == 0:
		ibrd = 1
		fbrd = 0
	case ibrd >= 65535:
		ibrd = 65535
		fbrd = 0
	default:
		fbrd = (uint32(div&0x7f) + 1) / 2
	}
	return hal.Divisor{Integer: ibrd, Fraction: fbrd}, nil
}
