//go:build (rp2040 || rp2350) && usartdebug

// Diagnostic probe: runs three loopback phases on usart.USART2 and prints
// the driver's interrupt and ring counters after each.
// Loop GP4 (TX) to GP5 (RX) with a jumper.
package main

import (
	"context"
	"crypto/sha1"
	"time"

	"github.com/jangala-dev/tinygo-usart/hal/rp2"
	"github.com/jangala-dev/tinygo-usart/usart"
)

const baud = 115200

func printStats(d *usart.Device, label string) {
	s := d.DebugStats()
	e := d.LineErrors()
	println("==", label)
	println("IRQ:    rx=", s.RxDataIRQ, " txe=", s.TxEmptyIRQ, " err=", s.RxErrorIRQ, " tc=", s.TxCompleteIRQ)
	println("Ring:   rx=", s.RxBytes, " overwrite=", s.RxOverwrite, " maxUsed=", s.RxMaxUsed,
		" dropped=", d.RxBuffer.Dropped())
	println("TX:     spins=", s.TxSpins, " queued=", d.TxBuffer.Count())
	println("Errors: OE=", e.Overrun, " FE=", e.Framing, " PE=", e.Parity)
}

func recvExact(ctx context.Context, d *usart.Device, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	tmp := make([]byte, 128)
	for len(out) < n {
		k, err := d.ReadContext(ctx, tmp[:min(len(tmp), n-len(out))])
		if err != nil {
			return out, err
		}
		out = append(out, tmp[:k]...)
	}
	return out, nil
}

func main() {
	for i := 10; i > 0; i-- {
		println("probe starting in", i, "seconds")
		time.Sleep(time.Second)
	}
	println("usart probe (diagnostic)")

	d := usart.USART2
	rp2.UART1.SetPins(4, 5)
	cfg := usart.DefaultConfig()
	cfg.BaudRate = baud
	if err := d.Initialize(cfg); err != nil {
		println("fatal:", err.Error())
		for {
			time.Sleep(time.Hour)
		}
	}
	d.Enable()
	d.DebugReset()
	d.ResetRX()

	// Phase 1: 1 KiB integrity
	println("\n[phase] integrity-1k")
	src := make([]byte, 1024)
	var x uint32 = 0x12345678
	for i := range src {
		x = 1664525*x + 1013904223
		src[i] = byte(x >> 24)
	}
	want := sha1.Sum(src)
	go d.Transmit(src)
	ctx1, cancel1 := context.WithTimeout(context.Background(), 2*time.Second)
	got, err := recvExact(ctx1, d, len(src))
	cancel1()
	switch {
	case err != nil:
		println(" result: TIMEOUT (received", len(got), "bytes)")
	case sha1.Sum(got) != want:
		println(" result: HASH MISMATCH")
	default:
		println(" result: OK (1 KiB)")
	}
	printStats(d, "after integrity-1k")

	// Phase 2: burst with the reader held off, so the receive ring wraps.
	println("\n[phase] burst-8k (reader held off)")
	d.DebugReset()
	d.ResetRX()
	burst := make([]byte, 8*1024)
	for i := range burst {
		burst[i] = byte(i)
	}
	d.Transmit(burst)
	ctx2, cancel2 := context.WithTimeout(context.Background(), 3*time.Second)
	_ = d.Flush(ctx2)
	cancel2()
	time.Sleep(time.Millisecond)
	println(" result: available", d.Available(), "of", d.RxBuffer.Size())
	printStats(d, "after burst-8k")

	// Phase 3: notify sanity (two bytes)
	println("\n[phase] notify-2bytes")
	d.DebugReset()
	d.ResetRX()
	go func() {
		d.TransmitChar('A')
		time.Sleep(5 * time.Millisecond)
		d.TransmitChar('B')
	}()
	ctx3, cancel3 := context.WithTimeout(context.Background(), 300*time.Millisecond)
	got3, err := recvExact(ctx3, d, 2)
	cancel3()
	if err != nil {
		println(" result: no data within 300ms")
	} else {
		println(" result: got '", string(got3), "'")
	}
	printStats(d, "after notify-2bytes")

	println("\ndone")
}
