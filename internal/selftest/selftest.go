// Package selftest is a loopback acceptance suite for a usart.Device. It
// runs unchanged on the simulated board and on hardware with TX wired to
// RX, and reports through a callback so firmware can print with println.
package selftest

import (
	"context"
	"crypto/sha1"
	"time"

	"github.com/jangala-dev/tinygo-usart/usart"
)

// Case is one named check. Run returns "" on success, otherwise the reason
// it failed.
type Case struct {
	Name string
	Run  func(d *usart.Device) string
}

// Report receives the outcome of each case; msg is "" for a pass.
type Report func(name, msg string)

// Run executes every case against d, which must be initialized, enabled
// and looped back. It returns the pass and fail counts.
func Run(d *usart.Device, report Report) (pass, fail int) {
	for _, c := range Cases() {
		drain(d)
		msg := c.Run(d)
		if msg == "" {
			pass++
		} else {
			fail++
		}
		if report != nil {
			report(c.Name, msg)
		}
	}
	return pass, fail
}

// Cases returns the suite in execution order.
func Cases() []Case {
	return []Case{
		{"flush: idle port drains immediately", testIdleFlush},
		{"sanity: short loopback", testShortLoopback},
		{"blocking: ReadByteContext waits for a byte", testBlockingByte},
		{"timeout: no data within 200ms", testQuiet},
		{"notify: Readable channel", testReadable},
		{"framing: two lines", testTwoLines},
		{"string: TransmitString stops at NUL", testString},
		{"decimal: TransmitUdec", testUdec},
		{"binary: 4 KiB integrity (SHA-1)", testIntegrity},
		{"overflow: burst keeps newest bytes", testOverflow},
		{"flush: waits for the line to drain", testFlush},
		{"format: re-Initialize 8E1", testFormat},
	}
}

func drain(d *usart.Device) {
	var tmp [64]byte
	for d.Receive(tmp[:]) > 0 {
	}
}

// sendAllContext queues p with TryTransmit, waiting on Writable whenever
// the ring is full.
func sendAllContext(ctx context.Context, d *usart.Device, p []byte) (int, error) {
	sent := 0
	for sent < len(p) {
		if n := d.TryTransmit(p[sent:]); n > 0 {
			sent += n
			continue
		}
		select {
		case <-d.Writable():
		case <-ctx.Done():
			return sent, ctx.Err()
		}
	}
	return sent, nil
}

// inFlight covers the data, shift and receive registers between the two
// rings of a loopback.
const inFlight = 3

// sendPaced is sendAllContext limited to what the receive ring can still
// take, so a loopback reader that falls behind loses nothing.
func sendPaced(ctx context.Context, d *usart.Device, p []byte) (int, error) {
	sent := 0
	for sent < len(p) {
		room := d.RxBuffer.Free() - d.TxBuffer.Count() - inFlight
		if room > len(p)-sent {
			room = len(p) - sent
		}
		if room > 0 {
			if n := d.TryTransmit(p[sent : sent+room]); n > 0 {
				sent += n
				continue
			}
		}
		select {
		case <-d.Writable():
		case <-time.After(time.Millisecond):
		case <-ctx.Done():
			return sent, ctx.Err()
		}
	}
	return sent, nil
}

// recvExact reads exactly n bytes (or ctx error) using Receive+Readable.
func recvExact(ctx context.Context, d *usart.Device, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	var buf [128]byte
	for len(out) < n {
		want := n - len(out)
		if want > len(buf) {
			want = len(buf)
		}
		if k := d.Receive(buf[:want]); k > 0 {
			out = append(out, buf[:k]...)
			continue
		}
		select {
		case <-d.Readable():
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
	return out, nil
}

func echo(d *usart.Device, msg []byte, timeout time.Duration) string {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	go func() { _, _ = sendPaced(ctx, d, msg) }()
	got, err := recvExact(ctx, d, len(msg))
	if err != nil {
		return "timeout"
	}
	if string(got) != string(msg) {
		return "mismatch"
	}
	return ""
}

func testIdleFlush(d *usart.Device) string {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := d.Flush(ctx); err != nil {
		return "idle flush timed out"
	}
	return ""
}

func testShortLoopback(d *usart.Device) string {
	msg := []byte("hello, usart\r\n")
	d.Transmit(msg)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := recvExact(ctx, d, len(msg))
	if err != nil {
		return "timeout"
	}
	if string(got) != string(msg) {
		return "mismatch"
	}
	return ""
}

func testBlockingByte(d *usart.Device) string {
	const want = 'Z'
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go func() {
		time.Sleep(10 * time.Millisecond)
		d.TransmitChar(want)
	}()
	b, err := d.ReadByteContext(ctx)
	if err != nil {
		return "read error"
	}
	if b != want {
		return "wrong byte"
	}
	return ""
}

func testQuiet(d *usart.Device) string {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := d.WaitReadable(ctx); err == nil {
		return "unexpected data"
	}
	return ""
}

func testReadable(d *usart.Device) string {
	// Consume a stale notification left by earlier cases.
	select {
	case <-d.Readable():
	default:
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go func() { _, _ = sendAllContext(ctx, d, []byte("AB")) }()
	select {
	case <-d.Readable():
		got, err := recvExact(ctx, d, 2)
		if err != nil || string(got) != "AB" {
			return "wrong data"
		}
		return ""
	case <-ctx.Done():
		return "no notification"
	}
}

func testTwoLines(d *usart.Device) string {
	return echo(d, []byte("first line\r\nsecond line\n"), time.Second)
}

func testString(d *usart.Device) string {
	d.TransmitString("kept\x00dropped")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := recvExact(ctx, d, 4)
	if err != nil || string(got) != "kept" {
		return "wrong prefix"
	}
	quiet, cancelQuiet := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancelQuiet()
	if d.WaitReadable(quiet) == nil {
		return "bytes after NUL were sent"
	}
	return ""
}

func testUdec(d *usart.Device) string {
	d.TransmitUdec(4294967295)
	d.TransmitChar(',')
	d.TransmitUdec(0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := recvExact(ctx, d, len("4294967295,0"))
	if err != nil || string(got) != "4294967295,0" {
		return "wrong digits"
	}
	return ""
}

func testIntegrity(d *usart.Device) string {
	n := 4 * 1024
	src := make([]byte, n)
	var x uint32 = 0x12345678
	for i := range src {
		x = 1664525*x + 1013904223
		src[i] = byte(x >> 24)
	}
	want := sha1.Sum(src)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go func() { _, _ = sendPaced(ctx, d, src) }()
	got, err := recvExact(ctx, d, n)
	if err != nil || len(got) != n {
		return "timeout/short read"
	}
	if sha1.Sum(got) != want {
		return "hash mismatch"
	}
	return ""
}

func testOverflow(d *usart.Device) string {
	n := 4 * d.RxBuffer.Size()
	src := make([]byte, n)
	for i := range src {
		src[i] = byte(i)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := sendAllContext(ctx, d, src); err != nil {
		return "send timeout"
	}
	if d.Flush(ctx) != nil {
		return "flush timeout"
	}
	// The last byte needs one character time to loop back.
	time.Sleep(5 * time.Millisecond)

	if d.Available() > d.RxBuffer.Size() {
		return "count exceeds capacity"
	}
	got := make([]byte, d.RxBuffer.Size())
	k := d.Receive(got)
	if k == 0 || got[k-1] != src[n-1] {
		return "newest byte lost"
	}
	for i := 1; i < k; i++ {
		if got[i] != got[i-1]+1 {
			return "kept bytes out of order"
		}
	}
	return ""
}

func testFlush(d *usart.Device) string {
	src := make([]byte, 256)
	for i := range src {
		src[i] = 'a' + byte(i%26)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	received := make(chan error, 1)
	go func() {
		_, err := recvExact(ctx, d, len(src))
		received <- err
	}()
	if _, err := sendPaced(ctx, d, src); err != nil {
		return "send timeout"
	}
	if err := d.Flush(ctx); err != nil {
		return "flush timeout"
	}
	if d.TxBuffer.Count() != 0 {
		return "ring not empty after flush"
	}
	if <-received != nil {
		return "loopback lost bytes"
	}
	return ""
}

func testFormat(d *usart.Device) string {
	prev := d.Config()
	defer func() {
		_ = d.Initialize(prev)
		d.Enable()
	}()

	cfg := prev
	cfg.Parity = usart.ParityEven
	if err := d.Initialize(cfg); err != nil {
		return "initialize failed"
	}
	d.Enable()
	if d.Config().Parity != usart.ParityEven {
		return "config not applied"
	}
	return echo(d, []byte("format-ok\r\n"), time.Second)
}
