// internal/sched/schedulerEvent.go

package sched

import (
	"time"
)

// StatusKind represents the type of time base event
type StatusKind int

const (
	StatusTick StatusKind = iota
	StatusArm
	StatusExpire
	StatusCancel
)

// StatusEvent is emitted every tick or on timer actions
type StatusEvent struct {
	Elapsed time.Duration // since the scheduler was created
	Kind    StatusKind
	Tick    int64
	TimerID TimerID
	Fired   int64
}

func (sk StatusKind) String() string {
	switch sk {
	case StatusTick:
		return "Tick"
	case StatusArm:
		return "Armed"
	case StatusExpire:
		return "Expired"
	case StatusCancel:
		return "Cancelled"
	default:
		return "Unknown"
	}
}
