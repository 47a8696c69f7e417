// Package timing derives compare-match timer settings (clock divider and
// compare value) from an input clock and a desired tick rate.
package timing

import (
	"fmt"
	"time"
)

// MaxCounterBits is the widest counter the resolver accepts.
const MaxCounterBits = 32

// SH1Dividers are the prescaler settings of the SH-1 ITU (TPSC 0..3).
var SH1Dividers = []uint32{1, 2, 4, 8}

// Params describe the clock feeding the timer and the wanted tick rate.
type Params struct {
	InputHz     uint64 // peripheral input clock
	TickHz      uint64 // wanted interrupts per second
	CounterBits uint   // counter width, e.g. 16
}

// Resolved is the timer setting derived from Params.
type Resolved struct {
	Divider   uint32 // selected prescaler
	Compare   uint32 // counter increments per tick, in [1, MaxCompare]
	CounterHz uint64 // effective counter frequency, InputHz/Divider rounded
}

// MaxCompare returns the largest value a counter of the given width holds.
func MaxCompare(bits uint) uint64 {
	return 1<<bits - 1
}

// Resolve picks the smallest supported divider that keeps one tick period
// within the counter range and the compare value closest to the tick period.
// dividers must be strictly ascending.
//
// Increments and divider requirements are rounded up so the divider is
// never under-provisioned; the effective counter frequency is rounded to
// nearest.
func Resolve(p Params, dividers []uint32) (Resolved, error) {
	if err := validate(p, dividers); err != nil {
		return Resolved{}, err
	}
	maxCmp := MaxCompare(p.CounterBits)

	perTick := ceilDiv(p.InputHz, p.TickHz)
	needed := ceilDiv(perTick, maxCmp)

	var div uint64
	for _, d := range dividers {
		if uint64(d) >= needed {
			div = uint64(d)
			break
		}
	}
	if div == 0 {
		return Resolved{}, &ConfigError{Params: p, Err: ErrUnachievable,
			Msg: fmt.Sprintf("needs divider >= %d, largest supported is %d",
				needed, dividers[len(dividers)-1])}
	}

	counterHz := roundDiv(p.InputHz, div)
	if counterHz == 0 {
		return Resolved{}, &ConfigError{Params: p, Err: ErrUnachievable,
			Msg: fmt.Sprintf("counter clock rounds to 0 Hz with divider %d", div)}
	}
	cmp := ceilDiv(counterHz, p.TickHz)
	if cmp > maxCmp {
		return Resolved{}, &ConfigError{Params: p, Err: ErrUnachievable,
			Msg: fmt.Sprintf("compare value %d exceeds counter max %d", cmp, maxCmp)}
	}
	return Resolved{Divider: uint32(div), Compare: uint32(cmp), CounterHz: counterHz}, nil
}

func validate(p Params, dividers []uint32) error {
	bad := func(msg string) error {
		return &ConfigError{Params: p, Err: ErrInvalidParams, Msg: msg}
	}
	switch {
	case p.InputHz == 0:
		return bad("input frequency is 0")
	case p.TickHz == 0:
		return bad("tick rate is 0")
	case p.CounterBits == 0 || p.CounterBits > MaxCounterBits:
		return bad(fmt.Sprintf("counter width %d not in 1..%d", p.CounterBits, MaxCounterBits))
	case len(dividers) == 0:
		return bad("no supported dividers")
	}
	var prev uint32
	for i, d := range dividers {
		if d == 0 {
			return bad("divider 0")
		}
		if i > 0 && d <= prev {
			return bad(fmt.Sprintf("dividers not ascending at %d", d))
		}
		prev = d
	}
	return nil
}

// Period returns the tick period the setting actually produces.
func (r Resolved) Period() time.Duration {
	if r.CounterHz == 0 {
		return 0
	}
	return time.Duration(uint64(r.Compare) * uint64(time.Second) / r.CounterHz)
}

// ErrorPPM returns the deviation of the achieved tick rate from p.TickHz
// in parts per million. Positive means ticks come too slowly.
func (r Resolved) ErrorPPM(p Params) float64 {
	if p.InputHz == 0 || p.TickHz == 0 {
		return 0
	}
	achieved := float64(r.Compare) * float64(r.Divider) / float64(p.InputHz)
	ideal := 1 / float64(p.TickHz)
	return (achieved - ideal) / ideal * 1e6
}

func (r Resolved) String() string {
	return fmt.Sprintf("divider %d, compare %d (%d Hz counter, period %s)",
		r.Divider, r.Compare, r.CounterHz, r.Period())
}
