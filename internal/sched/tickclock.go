// internal/sched/tickclock.go

package sched

import (
	"sync/atomic"
)

// TickClock counts system ticks atomically and signals each one on Ch.
// Tick is called from interrupt context and never blocks: when nobody
// drains Ch the notification is dropped and counted.
type TickClock struct {
	Ch      chan struct{}
	count   atomic.Int64
	dropped atomic.Uint64
}

// NewTickClock creates a clock whose notify channel holds buffer ticks.
func NewTickClock(buffer int) *TickClock {
	return &TickClock{
		Ch: make(chan struct{}, buffer),
	}
}

// Tick advances the clock by one and returns the new count.
func (c *TickClock) Tick() int64 {
	n := c.count.Add(1)
	select {
	case c.Ch <- struct{}{}:
	default:
		c.dropped.Add(1)
	}
	return n
}

// Count returns the current tick count atomically.
func (c *TickClock) Count() int64 {
	return c.count.Load()
}

// Dropped returns the number of tick notifications nobody received.
func (c *TickClock) Dropped() uint64 {
	return c.dropped.Load()
}
