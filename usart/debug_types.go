//go:build usartdebug

package usart

import "sync/atomic"

// Stats holds counters since the last reset.
type Stats struct {
	// Interrupt entries per source.
	RxDataIRQ     uint32
	TxEmptyIRQ    uint32
	RxErrorIRQ    uint32
	TxCompleteIRQ uint32

	// Receive ring
	RxBytes     uint32 // bytes pushed by the RX-data handler
	RxOverwrite uint32 // pushes that dropped the oldest unread byte
	RxMaxUsed   uint32 // high-water mark of ring occupancy

	// Transmit path
	TxSpins uint32 // Transmit iterations spent waiting for ring space
}

func (d *Device) DebugReset() {
	for _, p := range []*uint32{
		&d.stats.RxDataIRQ, &d.stats.TxEmptyIRQ, &d.stats.RxErrorIRQ, &d.stats.TxCompleteIRQ,
		&d.stats.RxBytes, &d.stats.RxOverwrite, &d.stats.RxMaxUsed,
		&d.stats.TxSpins,
	} {
		atomic.StoreUint32(p, 0)
	}
}

func (d *Device) DebugStats() Stats {
	return Stats{
		RxDataIRQ:     atomic.LoadUint32(&d.stats.RxDataIRQ),
		TxEmptyIRQ:    atomic.LoadUint32(&d.stats.TxEmptyIRQ),
		RxErrorIRQ:    atomic.LoadUint32(&d.stats.RxErrorIRQ),
		TxCompleteIRQ: atomic.LoadUint32(&d.stats.TxCompleteIRQ),

		RxBytes:     atomic.LoadUint32(&d.stats.RxBytes),
		RxOverwrite: atomic.LoadUint32(&d.stats.RxOverwrite),
		RxMaxUsed:   atomic.LoadUint32(&d.stats.RxMaxUsed),

		TxSpins: atomic.LoadUint32(&d.stats.TxSpins),
	}
}
