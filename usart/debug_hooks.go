//go:build usartdebug

package usart

import "sync/atomic"

// Called at handler entry.
func (d *Device) dbgIRQ(src int) {
	switch src {
	case srcRxData:
		atomic.AddUint32(&d.stats.RxDataIRQ, 1)
	case srcTxEmpty:
		atomic.AddUint32(&d.stats.TxEmptyIRQ, 1)
	case srcRxError:
		atomic.AddUint32(&d.stats.RxErrorIRQ, 1)
	case srcTxComplete:
		atomic.AddUint32(&d.stats.TxCompleteIRQ, 1)
	}
}

// Called per received byte; overwrote reports whether the push dropped the
// oldest unread byte.
func (d *Device) dbgRxByte(overwrote bool) {
	atomic.AddUint32(&d.stats.RxBytes, 1)
	if overwrote {
		atomic.AddUint32(&d.stats.RxOverwrite, 1)
	}
	// track high-water mark
	used := uint32(d.RxBuffer.Count())
	for {
		max := atomic.LoadUint32(&d.stats.RxMaxUsed)
		if used <= max {
			break
		}
		if atomic.CompareAndSwapUint32(&d.stats.RxMaxUsed, max, used) {
			break
		}
	}
}

func (d *Device) dbgTxSpin() {
	atomic.AddUint32(&d.stats.TxSpins, 1)
}
