//go:build rp2040 || rp2350

// Cross-port integrity test for RP2040/RP2350 using usart.USART1 and
// usart.USART2.
// Wiring:
//
//	USART1 TX=GP0 -> USART2 RX=GP5
//	USART2 TX=GP4 -> USART1 RX=GP1
package main

import (
	"context"
	"time"

	"machine"

	"github.com/jangala-dev/tinygo-usart/hal/rp2"
	"github.com/jangala-dev/tinygo-usart/usart"
)

/*** Tunables ***/
const (
	baud           = 460800    // line rate on both ports
	totalBytes     = 64 * 1024 // bytes per direction
	fullDuplex     = true      // false: run each direction separately
	timeoutPerTest = 10 * time.Second
	warmupDelay    = 2 * time.Second

	sendChunk     = 192 // bytes per TryTransmit burst
	recvChunk     = 256 // bytes per ReadContext
	contextRadius = 16  // bytes shown either side of a mismatch
)

/*** Patterns (deterministic) ***/
func patternA(i int) byte { return byte((i*31 + 0x55) & 0xFF) }
func patternB(i int) byte { return byte((i*17 + 0xA6) & 0xFF) }

func main() {
	time.Sleep(warmupDelay)
	println("usart integrity test")
	println("baud =", baud, "  bytes/dir =", totalBytes, "  duplex =", fullDuplex)

	// Hold RX high before muxing to the UART so the line idles high.
	machine.Pin(1).Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	machine.Pin(5).Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	rp2.UART0.SetPins(0, 1)
	rp2.UART1.SetPins(4, 5)

	cfg := usart.DefaultConfig()
	cfg.BaudRate = baud
	u1, u2 := usart.USART1, usart.USART2
	for _, d := range []*usart.Device{u1, u2} {
		if err := d.Initialize(cfg); err != nil {
			println("initialize failed:", err.Error())
			return
		}
		d.Enable()
		d.ResetRX()
	}

	machine.LED.Configure(machine.PinConfig{Mode: machine.PinOutput})

	pass, fail := 0, 0
	report := func(name, err string) {
		if err == "" {
			println("[PASS]", name)
			pass++
		} else {
			println("[FAIL]", name, ":", err)
			fail++
		}
	}

	if fullDuplex {
		report("full-duplex integrity", runFullDuplex(totalBytes, u1, u2))
	} else {
		report("USART1 -> USART2 integrity", runOneWay(u1, u2, patternA, totalBytes))
		report("USART2 -> USART1 integrity", runOneWay(u2, u1, patternB, totalBytes))
	}

	for _, d := range []*usart.Device{u1, u2} {
		e := d.LineErrors()
		println("usart", int(d.Channel()), "overrun =", e.Overrun, "framing =", e.Framing,
			"parity =", e.Parity, "ring dropped =", d.RxBuffer.Dropped())
	}

	println("")
	println("Summary")
	println("  passed =", pass)
	println("  failed =", fail)
	if fail == 0 {
		blink(machine.LED, 3, 120*time.Millisecond)
		return
	}
	for {
		blink(machine.LED, 1, 600*time.Millisecond)
		time.Sleep(800 * time.Millisecond)
	}
}

/*** Test runners ***/

func runOneWay(tx, rx *usart.Device, gen func(int) byte, n int) string {
	rx.ResetRX()
	ctx, cancel := context.WithTimeout(context.Background(), timeoutPerTest)
	defer cancel()

	errCh := make(chan string, 1)
	go func() { errCh <- recvAndCheck(ctx, rx, gen, n) }()
	if err := sendPattern(ctx, tx, gen, n); err != nil {
		return "send timeout"
	}
	return <-errCh
}

func runFullDuplex(n int, u1, u2 *usart.Device) string {
	u1.ResetRX()
	u2.ResetRX()
	ctx, cancel := context.WithTimeout(context.Background(), timeoutPerTest)
	defer cancel()

	errCh := make(chan string, 2)
	go func() { errCh <- recvAndCheck(ctx, u2, patternA, n) }()
	go func() { errCh <- recvAndCheck(ctx, u1, patternB, n) }()
	go func() { _ = sendPattern(ctx, u1, patternA, n) }()
	go func() { _ = sendPattern(ctx, u2, patternB, n) }()

	if e := <-errCh; e != "" {
		return e
	}
	return <-errCh
}

/*** Transfer helpers ***/

// sendPattern queues gen(0..n-1) in chunks, waiting on Writable whenever
// the transmit ring is full.
func sendPattern(ctx context.Context, d *usart.Device, gen func(int) byte, n int) error {
	var buf [sendChunk]byte
	for i := 0; i < n; {
		k := sendChunk
		if n-i < k {
			k = n - i
		}
		for j := 0; j < k; j++ {
			buf[j] = gen(i + j)
		}
		for p := buf[:k]; len(p) > 0; {
			if m := d.TryTransmit(p); m > 0 {
				p = p[m:]
				continue
			}
			select {
			case <-d.Writable():
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		i += k
	}
	return nil
}

// recvAndCheck reads exactly n bytes and compares each against gen(i). On
// the first mismatch it prints the expected and received bytes around it.
func recvAndCheck(ctx context.Context, d *usart.Device, gen func(int) byte, n int) string {
	var buf [recvChunk]byte
	for received := 0; received < n; {
		k := n - received
		if k > len(buf) {
			k = len(buf)
		}
		m, err := d.ReadContext(ctx, buf[:k])
		if err != nil {
			return "timeout"
		}
		for i := 0; i < m; i++ {
			if buf[i] != gen(received+i) {
				println("first mismatch at offset", received+i)
				printContext(gen, received, buf[:m], i)
				return "integrity mismatch"
			}
		}
		received += m
	}
	return ""
}

/*** Context dump ***/

func printContext(gen func(int) byte, base int, got []byte, rel int) {
	start := rel - contextRadius
	if start < 0 {
		start = 0
	}
	end := rel + contextRadius + 1
	if end > len(got) {
		end = len(got)
	}
	println("context (hex): bytes", base+start, "to", base+end-1)
	print(" exp:")
	for i := start; i < end; i++ {
		printHex(gen(base+i), i == rel)
	}
	println("")
	print(" act:")
	for i := start; i < end; i++ {
		printHex(got[i], i == rel)
	}
	println("")
}

func printHex(v byte, pivot bool) {
	const hexdigits = "0123456789ABCDEF"
	s := string([]byte{hexdigits[v>>4], hexdigits[v&0xF]})
	if pivot {
		print(" [", s, "]")
		return
	}
	print(" ", s)
}

func blink(pin machine.Pin, times int, on time.Duration) {
	for i := 0; i < times; i++ {
		pin.High()
		time.Sleep(on)
		pin.Low()
		time.Sleep(on)
	}
}
