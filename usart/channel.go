package usart

import "github.com/jangala-dev/tinygo-usart/hal"

// Channel is the number of a physical USART channel.
type Channel uint8

const (
	Channel1 Channel = iota + 1
	Channel2
	Channel3
	Channel4

	// ChannelUnknown is reported for a register block that is not one of
	// the board's USARTs.
	ChannelUnknown Channel = 0xff
)

// ChannelOf maps a register block to the channel it belongs to, using the
// platform's table of USART register blocks.
func ChannelOf(regs hal.Registers) Channel {
	if regs == nil {
		return ChannelUnknown
	}
	for i, r := range channelRegs {
		if r == regs {
			return Channel(i + 1)
		}
	}
	return ChannelUnknown
}
