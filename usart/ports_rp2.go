//go:build rp2040 || rp2350

package usart

import (
	"github.com/jangala-dev/tinygo-usart/hal"
	"github.com/jangala-dev/tinygo-usart/hal/rp2"
)

// Public instances on the RP2040/RP2350: USART1 is PL011 UART0 and USART2
// is UART1. Pins are muxed with rp2.UART0.SetPins before Enable.
var (
	USART1 = newDevice(rp2.UART0, rp2.Board, rp2.Clock(0), rp2.VectorsOf(0),
		rp2.DefaultPriority, RxBufferSize, TxBufferSize)
	USART2 = newDevice(rp2.UART1, rp2.Board, rp2.Clock(1), rp2.VectorsOf(1),
		rp2.DefaultPriority, RxBufferSize, TxBufferSize)
)

var ports = [...]*Device{USART1, USART2}

var channelRegs = [...]hal.Registers{rp2.UART0, rp2.UART1}
