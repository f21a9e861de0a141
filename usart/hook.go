package usart

import "sync/atomic"

// Hook observes every byte the interrupt handlers move. Both methods run in
// interrupt context: they must not block and must return quickly.
type Hook interface {
	OnTxByte(b byte, ch Channel)
	OnRxByte(b byte, ch Channel)
}

// HookFuncs adapts plain functions to Hook. Nil fields are skipped.
type HookFuncs struct {
	Tx func(b byte, ch Channel)
	Rx func(b byte, ch Channel)
}

// OnTxByte calls h.Tx if set.
func (h HookFuncs) OnTxByte(b byte, ch Channel) {
	if h.Tx != nil {
		h.Tx(b, ch)
	}
}

// OnRxByte calls h.Rx if set.
func (h HookFuncs) OnRxByte(b byte, ch Channel) {
	if h.Rx != nil {
		h.Rx(b, ch)
	}
}

type hookBox struct{ h Hook }

var hook atomic.Pointer[hookBox]

// SetHook installs h for all ports. A nil h removes the current hook.
func SetHook(h Hook) {
	if h == nil {
		hook.Store(nil)
		return
	}
	hook.Store(&hookBox{h: h})
}

func hookTx(b byte, ch Channel) {
	if hb := hook.Load(); hb != nil {
		hb.h.OnTxByte(b, ch)
	}
}

func hookRx(b byte, ch Channel) {
	if hb := hook.Load(); hb != nil {
		hb.h.OnRxByte(b, ch)
	}
}
