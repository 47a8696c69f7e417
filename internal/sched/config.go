package sched

// Config tunes the time base.
type Config struct {
	EventBuffer int  // status events held for Run, 256 by default
	NotifyDepth int  // tick notifications held on the clock channel, 64 by default
	TickEvents  bool // emit a StatusTick event on every tick
}

// sanity clamps
func (c Config) withDefaults() Config {
	if c.EventBuffer <= 0 {
		c.EventBuffer = 256
	}
	if c.NotifyDepth <= 0 {
		c.NotifyDepth = 64
	}
	return c
}
