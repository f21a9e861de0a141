// usart/ringbuffer.go

package usart

import "sync/atomic"

// RingBuffer is a fixed-capacity byte queue for exactly one producer and one
// consumer running in different execution contexts (main and interrupt).
//
// head is written only by the producer. tail is advanced with compare-and-swap
// by the consumer and, when the producer overwrites the oldest byte of a full
// buffer or either side clears it, by that side as well; a consumer that loses
// the race simply retries. Indices run modulo twice the capacity so full and
// empty are distinguishable for any capacity.
type RingBuffer struct {
	buf     []atomic.Uint32
	size    uint32
	head    atomic.Uint32
	tail    atomic.Uint32
	dropped atomic.Uint32
}

// NewRingBuffer returns an empty ring buffer holding up to size bytes.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 || size > 1<<16 {
		panic("usart: ring buffer size out of range")
	}
	return &RingBuffer{
		buf:  make([]atomic.Uint32, size),
		size: uint32(size),
	}
}

func (rb *RingBuffer) next(i uint32) uint32 {
	i++
	if i == 2*rb.size {
		i = 0
	}
	return i
}

func (rb *RingBuffer) used(h, t uint32) uint32 {
	if h >= t {
		return h - t
	}
	return h + 2*rb.size - t
}

// Size returns the capacity of the buffer in bytes.
func (rb *RingBuffer) Size() int { return int(rb.size) }

// Count returns the number of queued bytes.
func (rb *RingBuffer) Count() int {
	for {
		h := rb.head.Load()
		t := rb.tail.Load()
		if rb.head.Load() != h {
			continue
		}
		if u := rb.used(h, t); u <= rb.size {
			return int(u)
		}
	}
}

// Free returns the number of bytes that can be pushed without overwriting.
func (rb *RingBuffer) Free() int { return rb.Size() - rb.Count() }

// Push appends val. If the buffer is full it either drops the oldest byte to
// make room (overwrite) or leaves the buffer untouched and returns false.
// Producer side only.
func (rb *RingBuffer) Push(val byte, overwrite bool) bool {
	h := rb.head.Load()
	for {
		t := rb.tail.Load()
		if rb.used(h, t) < rb.size {
			break
		}
		if !overwrite {
			return false
		}
		if rb.tail.CompareAndSwap(t, rb.next(t)) {
			rb.dropped.Add(1)
			break
		}
	}
	rb.buf[h%rb.size].Store(uint32(val)) // 1) write data
	rb.head.Store(rb.next(h))            // 2) publish
	return true
}

// Pop removes and returns the oldest byte, or (0, false) if empty.
// Consumer side only.
func (rb *RingBuffer) Pop() (byte, bool) {
	for {
		t := rb.tail.Load()
		h := rb.head.Load()
		if h == t {
			if rb.tail.Load() == t {
				return 0, false
			}
			continue
		}
		v := rb.buf[t%rb.size].Load()
		if rb.tail.CompareAndSwap(t, rb.next(t)) {
			return byte(v), true
		}
	}
}

// Peek returns the oldest byte without removing it, or (0, false) if empty.
// Consumer side only.
func (rb *RingBuffer) Peek() (byte, bool) {
	for {
		t := rb.tail.Load()
		h := rb.head.Load()
		if h == t {
			if rb.tail.Load() == t {
				return 0, false
			}
			continue
		}
		v := rb.buf[t%rb.size].Load()
		if rb.tail.Load() == t {
			return byte(v), true
		}
	}
}

// Clear discards every queued byte. Either side may call it.
func (rb *RingBuffer) Clear() {
	for {
		t := rb.tail.Load()
		h := rb.head.Load()
		if rb.tail.CompareAndSwap(t, h) {
			return
		}
	}
}

// Dropped returns how many bytes overwriting pushes have discarded.
func (rb *RingBuffer) Dropped() uint32 { return rb.dropped.Load() }
