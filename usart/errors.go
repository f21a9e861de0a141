package usart

import "errors"

var (
	// ErrBufferEmpty is returned by ReadByte when nothing is queued.
	ErrBufferEmpty = errors.New("usart: buffer empty")
	// ErrBufferFull is returned by TryTransmitChar when the transmit ring
	// has no room. Transmit retries instead of surfacing it.
	ErrBufferFull      = errors.New("usart: buffer full")
	ErrNotInitialized  = errors.New("usart: port not initialized")
	ErrInvalidBaudRate = errors.New("usart: invalid baud rate")
	ErrInvalidConfig   = errors.New("usart: invalid configuration")
)
