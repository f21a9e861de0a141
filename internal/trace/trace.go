// Package trace records the bytes the usart interrupt handlers move. A
// Recorder is installed with usart.SetHook; it keeps per-channel byte
// counts and forwards each byte to a bounded event queue that a logging
// goroutine drains outside interrupt context.
package trace

import (
	"context"
	"log"
	"strconv"
	"sync/atomic"

	"github.com/jangala-dev/tinygo-usart/usart"
)

// Event is one byte moved by a handler.
type Event struct {
	Tx      bool
	Byte    byte
	Channel usart.Channel
}

// Counters are the byte totals of one channel.
type Counters struct {
	Channel usart.Channel
	Tx      uint64
	Rx      uint64
}

// Recorder implements usart.Hook.
type Recorder struct {
	tx, rx [usart.Channel4 + 1]atomic.Uint64

	events chan Event
	lost   atomic.Uint64
}

// New returns a Recorder that queues up to depth events. With depth 0 only
// the counters are kept.
func New(depth int) *Recorder {
	r := &Recorder{}
	if depth > 0 {
		r.events = make(chan Event, depth)
	}
	return r
}

// OnTxByte implements usart.Hook.
func (r *Recorder) OnTxByte(b byte, ch usart.Channel) {
	if ch <= usart.Channel4 {
		r.tx[ch].Add(1)
	}
	r.queue(Event{Tx: true, Byte: b, Channel: ch})
}

// OnRxByte implements usart.Hook.
func (r *Recorder) OnRxByte(b byte, ch usart.Channel) {
	if ch <= usart.Channel4 {
		r.rx[ch].Add(1)
	}
	r.queue(Event{Byte: b, Channel: ch})
}

// queue never blocks; events that don't fit are counted as lost.
func (r *Recorder) queue(e Event) {
	if r.events == nil {
		return
	}
	select {
	case r.events <- e:
	default:
		r.lost.Add(1)
	}
}

// Snapshot returns the totals of ch. Unknown channels read as zero.
func (r *Recorder) Snapshot(ch usart.Channel) Counters {
	c := Counters{Channel: ch}
	if ch <= usart.Channel4 {
		c.Tx = r.tx[ch].Load()
		c.Rx = r.rx[ch].Load()
	}
	return c
}

// Events returns the event queue, or nil if the Recorder keeps none.
func (r *Recorder) Events() <-chan Event { return r.events }

// Lost returns how many events were discarded because the queue was full.
func (r *Recorder) Lost() uint64 { return r.lost.Load() }

// Log writes every queued event to l until ctx is done.
func (r *Recorder) Log(ctx context.Context, l *log.Logger) {
	if r.events == nil {
		<-ctx.Done()
		return
	}
	for {
		select {
		case e := <-r.events:
			l.Print(e.String())
		case <-ctx.Done():
			if n := r.Lost(); n > 0 {
				l.Printf("trace: %d events lost", n)
			}
			return
		}
	}
}

func (e Event) String() string {
	dir := "rx"
	if e.Tx {
		dir = "tx"
	}
	ch := "usart?"
	if e.Channel != usart.ChannelUnknown {
		ch = "usart" + strconv.Itoa(int(e.Channel))
	}
	s := ch + " " + dir + " 0x" + strconv.FormatUint(uint64(e.Byte)|0x100, 16)[1:]
	if e.Byte >= 0x20 && e.Byte < 0x7f {
		s += " " + strconv.QuoteRune(rune(e.Byte))
	}
	return s
}
