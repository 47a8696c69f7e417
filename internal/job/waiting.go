// Package job holds ready-made timer work for the time base.
package job

import (
	"context"
	"sync/atomic"

	"systick/internal/sched"
)

// Signal returns timer work that hands the expiry tick to ch without
// blocking; when ch is full the expiry is dropped.
func Signal(ch chan<- int64) sched.TimerFunc {
	return func(_ sched.TimerID, now int64) {
		select {
		case ch <- now:
		default:
		}
	}
}

// Count returns timer work that counts expiries in n.
func Count(n *atomic.Int64) sched.TimerFunc {
	return func(sched.TimerID, int64) { n.Add(1) }
}

// Chain runs fns in order on every expiry.
func Chain(fns ...sched.TimerFunc) sched.TimerFunc {
	return func(id sched.TimerID, now int64) {
		for _, fn := range fns {
			fn(id, now)
		}
	}
}

// SleepTicks blocks until ticks system ticks have elapsed on s, using a
// one-shot timer with the given id. It returns the tick it woke at, or
// ctx.Err() with the timer cancelled when ctx ends first.
func SleepTicks(ctx context.Context, s *sched.Scheduler, id sched.TimerID, ticks int64) (int64, error) {
	wake := make(chan int64, 1)
	if err := s.Start(sched.NewTimer(id, ticks, Signal(wake))); err != nil {
		return 0, err
	}
	select {
	case now := <-wake:
		return now, nil
	case <-ctx.Done():
		// already fired or cancelled, either way it is gone
		_ = s.Cancel(id)
		return s.Now(), ctx.Err()
	}
}
