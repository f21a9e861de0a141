package sim

import (
	"sync"
	"sync/atomic"

	"github.com/jangala-dev/tinygo-usart/hal"
)

type vector struct {
	priority uint8
	handler  func()
}

// controller is a level-triggered interrupt controller for a single core.
// Handlers run to completion and never nest: whichever goroutine raises a
// line while no handler is running becomes the dispatcher until every
// pending line is serviced. Raising a line while a handler is running only
// schedules another dispatch pass.
type controller struct {
	mu      sync.Mutex
	vectors map[hal.IRQ]vector
	blocks  []*Block

	running atomic.Bool
	again   atomic.Bool

	traceMu sync.Mutex
	tracing bool
	trace   []hal.IRQ
}

func newController() *controller {
	return &controller{vectors: make(map[hal.IRQ]vector)}
}

func (c *controller) install(irq hal.IRQ, priority uint8, h func()) {
	c.mu.Lock()
	c.vectors[irq] = vector{priority: priority, handler: h}
	c.mu.Unlock()
	c.kick()
}

func (c *controller) attach(b *Block) {
	c.mu.Lock()
	c.blocks = append(c.blocks, b)
	c.mu.Unlock()
}

// kick services pending lines.
func (c *controller) kick() {
	for {
		if !c.running.CompareAndSwap(false, true) {
			c.again.Store(true)
			return
		}
		for {
			c.again.Store(false)
			irq, h, ok := c.next()
			if !ok {
				break
			}
			c.record(irq)
			h()
		}
		c.running.Store(false)
		if !c.again.Load() {
			return
		}
	}
}

// next picks the most urgent pending line that has a handler installed.
func (c *controller) next() (hal.IRQ, func(), bool) {
	c.mu.Lock()
	blocks := c.blocks
	c.mu.Unlock()

	var (
		best  vector
		pick  line
		found bool
	)
	for _, b := range blocks {
		for _, l := range b.pending() {
			c.mu.Lock()
			v, ok := c.vectors[l.irq]
			c.mu.Unlock()
			if !ok {
				continue
			}
			if !found || v.priority < best.priority ||
				(v.priority == best.priority && l.rank < pick.rank) {
				best, pick, found = v, l, true
			}
		}
	}
	return pick.irq, best.handler, found
}

func (c *controller) record(irq hal.IRQ) {
	c.traceMu.Lock()
	if c.tracing {
		c.trace = append(c.trace, irq)
	}
	c.traceMu.Unlock()
}
