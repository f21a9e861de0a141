//go:build !rp2040 && !rp2350

package usart

import (
	"github.com/jangala-dev/tinygo-usart/hal"
	"github.com/jangala-dev/tinygo-usart/internal/sim"
)

// Host build: the ports drive the simulated board in internal/sim so the
// driver runs, and is tested, without hardware.

var board = sim.NewBoard()

func hostPort(n int) *Device {
	return newDevice(board.USART(n), board, sim.Clock(n), sim.VectorsOf(n),
		sim.DefaultPriority, RxBufferSize, TxBufferSize)
}

// Public instances.
var (
	USART1 = hostPort(1)
	USART2 = hostPort(2)
	USART3 = hostPort(3)
)

var ports = [...]*Device{USART1, USART2, USART3}

// channelRegs maps each channel to its register block. USART4 exists in
// hardware but has no port.
var channelRegs = [...]hal.Registers{
	board.USART(1),
	board.USART(2),
	board.USART(3),
	board.USART(4),
}

// SimBoard returns the simulated board behind the host ports, for wiring
// loopbacks and injecting traffic.
func SimBoard() *sim.Board { return board }
