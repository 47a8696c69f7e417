package sched

// TimerID uniquely identifies a timer in the scheduler.
type TimerID uint64

// TimerFunc is called when a timer expires, with the tick it expired at.
// It runs in interrupt context and must not block.
type TimerFunc func(id TimerID, now int64)

// Timer is one watchdog-style timer on the time base.
type Timer struct {
	ID      TimerID
	Delay   int64     // ticks from Start to the first expiry, at least 1
	Period  int64     // re-arm interval in ticks; 0 = one-shot
	Expires int64     // absolute expiry tick, set by Start
	Fired   int64     // number of expiries so far
	Fn      TimerFunc // expiry work
}

// NewTimer creates a one-shot timer expiring delay ticks after Start.
// NOTE: Expires is computed when the timer is started.
func NewTimer(id TimerID, delay int64, fn TimerFunc) *Timer {
	if delay < 1 {
		delay = 1
	}
	return &Timer{ID: id, Delay: delay, Fn: fn}
}

// NewPeriodic creates a timer expiring every period ticks.
func NewPeriodic(id TimerID, period int64, fn TimerFunc) *Timer {
	t := NewTimer(id, period, fn)
	t.Period = t.Delay
	return t
}
