//go:build rp2040 || rp2350

package main

import (
	"time"

	"machine"

	"github.com/jangala-dev/tinygo-usart/hal/rp2"
	"github.com/jangala-dev/tinygo-usart/internal/selftest"
	"github.com/jangala-dev/tinygo-usart/usart"
)

// Loopback self-test for usart.USART2 (PL011 UART1).
// Wire GP4 (TX) to GP5 (RX) before flashing.
var (
	d     = usart.USART2
	txPin = machine.Pin(4)
	rxPin = machine.Pin(5)
	baud  = uint32(921600)
)

func ledBlink(times int, on time.Duration) {
	for i := 0; i < times; i++ {
		machine.LED.High()
		time.Sleep(on)
		machine.LED.Low()
		time.Sleep(on)
	}
}

func main() {
	// Give the monitor time to attach.
	time.Sleep(3 * time.Second)
	machine.LED.Configure(machine.PinConfig{Mode: machine.PinOutput})

	println("usart self-test starting")

	rp2.UART1.SetPins(txPin, rxPin)
	cfg := usart.DefaultConfig()
	cfg.BaudRate = baud
	if err := d.Initialize(cfg); err != nil {
		println("Initialize failed:", err.Error())
		for {
			ledBlink(1, 500*time.Millisecond)
		}
	}
	d.Enable()

	pass, fail := selftest.Run(d, func(name, msg string) {
		println("")
		println("[Test]", name)
		if msg == "" {
			println("  PASS")
		} else {
			println("  FAIL:", msg)
		}
	})

	errs := d.LineErrors()
	println("")
	println("Summary")
	println("  passed =", pass)
	println("  failed =", fail)
	println("  overrun =", errs.Overrun, "framing =", errs.Framing, "parity =", errs.Parity)
	if fail == 0 {
		ledBlink(3, 120*time.Millisecond)
		return
	}
	for {
		ledBlink(1, 600*time.Millisecond)
		time.Sleep(800 * time.Millisecond)
	}
}
