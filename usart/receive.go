// usart/receive.go

package usart

// Receive copies up to len(p) already received bytes into p and returns how
// many were copied. It never blocks.
func (d *Device) Receive(p []byte) int {
	n := 0
	for n < len(p) {
		b, ok := d.RxBuffer.Pop()
		if !ok {
			break
		}
		p[n] = b
		n++
	}
	return n
}

// Read implements io.Reader without blocking: it returns 0, nil when nothing
// has been received. Use ReadContext to wait for data.
func (d *Device) Read(p []byte) (int, error) {
	return d.Receive(p), nil
}

// ReadByte removes and returns the next received byte. Callers are expected
// to check Available first; on an empty buffer it returns ErrBufferEmpty.
func (d *Device) ReadByte() (byte, error) {
	b, ok := d.RxBuffer.Pop()
	if !ok {
		return 0, ErrBufferEmpty
	}
	return b, nil
}

// PeekByte returns the next received byte without consuming it. ok is false
// when nothing is buffered.
func (d *Device) PeekByte() (b byte, ok bool) {
	return d.RxBuffer.Peek()
}

// Available returns the number of bytes in the receive ring.
func (d *Device) Available() int {
	return d.RxBuffer.Count()
}

// ResetRX discards all received bytes. The hardware enable state is
// untouched.
func (d *Device) ResetRX() { d.RxBuffer.Clear() }
