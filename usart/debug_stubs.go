//go:build !usartdebug

package usart

type Stats struct{}

func (d *Device) DebugReset()       {}
func (d *Device) DebugStats() Stats { return Stats{} }

func (d *Device) dbgIRQ(int)     {}
func (d *Device) dbgRxByte(bool) {}
func (d *Device) dbgTxSpin()     {}
