package itu

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/intuitivelabs/timestamp"

	"systick/internal/log"
)

// Sim is a software model of ITU channel 0 used on the host.
// It implements Bus; Advance feeds it input clock cycles.
type Sim struct {
	mu      sync.Mutex
	inputHz uint64
	ack     AckMode
	irq     func() // raised on GRA match when IMIEA is set

	tstr, tcr, tior, tier, tsr uint8
	tcnt, gra, grb             uint16

	prescale uint64 // input cycles counted toward the next TCNT increment
	matches  uint64
	overruns uint64 // matches seen while IMFA was still set
}

// NewSim returns a peripheral in its reset state clocked at inputHz.
func NewSim(inputHz uint64, ack AckMode) *Sim {
	return &Sim{inputHz: inputHz, ack: ack, gra: 0xffff, grb: 0xffff}
}

// Connect sets the function called when the peripheral raises its
// compare-match interrupt.
func (s *Sim) Connect(irq func()) {
	s.mu.Lock()
	s.irq = irq
	s.mu.Unlock()
}

func (s *Sim) Read8(addr uint32) uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch addr {
	case TSTR:
		return s.tstr
	case TCR0:
		return s.tcr
	case TIOR0:
		return s.tior
	case TIER0:
		return s.tier
	case TSR0:
		return s.tsr
	}
	if log.DBGon() {
		log.DBG("itu sim: 8 bit read of unmapped 0x%08x\n", addr)
	}
	return 0
}

func (s *Sim) Write8(addr uint32, v uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch addr {
	case TSTR:
		s.tstr = v
	case TCR0:
		s.tcr = v
	case TIOR0:
		s.tior = v
	case TIER0:
		s.tier = v
	case TSR0:
		// flags cannot be set by software
		if s.ack == AckWrite1 {
			s.tsr &^= v & TSR_FLAGS
		} else {
			s.tsr &= v | ^TSR_FLAGS
		}
	default:
		if log.DBGon() {
			log.DBG("itu sim: 8 bit write of unmapped 0x%08x\n", addr)
		}
	}
}

func (s *Sim) Read16(addr uint32) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch addr {
	case TCNT0:
		return s.tcnt
	case GRA0:
		return s.gra
	case GRB0:
		return s.grb
	}
	if log.DBGon() {
		log.DBG("itu sim: 16 bit read of unmapped 0x%08x\n", addr)
	}
	return 0
}

func (s *Sim) Write16(addr uint32, v uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch addr {
	case TCNT0:
		s.tcnt = v
		s.prescale = 0
	case GRA0:
		s.gra = v
	case GRB0:
		s.grb = v
	default:
		if log.DBGon() {
			log.DBG("itu sim: 16 bit write of unmapped 0x%08x\n", addr)
		}
	}
}

// Advance runs the channel for the given number of input clock cycles.
// Every GRA match sets IMFA and, with IMIEA set, calls the connected
// interrupt function before the remaining cycles are consumed. The
// interrupt function runs without the peripheral lock held so it can
// access the registers.
func (s *Sim) Advance(cycles uint64) {
	for {
		s.mu.Lock()
		if s.tstr&TSTR_STR0 == 0 {
			s.mu.Unlock()
			return
		}
		div := dividerOf(s.tcr)
		total := s.prescale + cycles
		counts := total / div

		var toMatch uint64
		if s.tcnt < s.gra {
			toMatch = uint64(s.gra - s.tcnt)
		} else {
			toMatch = 0x10000 - uint64(s.tcnt) + uint64(s.gra)
		}
		if counts < toMatch {
			s.tcnt += uint16(counts)
			s.prescale = total % div
			s.mu.Unlock()
			return
		}

		cycles -= toMatch*div - s.prescale
		s.prescale = 0
		s.tcnt = s.gra
		s.matches++
		if s.tsr&TSR_IMFA != 0 {
			s.overruns++
		}
		s.tsr |= TSR_IMFA
		if s.tcr&TCR_CCLR == TCR_CGRA {
			s.tcnt = 0
		}
		irq := s.irq
		fire := s.tier&TIER_IMIEA != 0
		s.mu.Unlock()

		if fire && irq != nil {
			irq()
		}
	}
}

// Run advances the peripheral from the host clock until ctx is done.
// speed scales simulated time against wall time (1 = real time).
func (s *Sim) Run(ctx context.Context, quantum time.Duration, speed float64) error {
	if quantum <= 0 {
		quantum = time.Millisecond
	}
	if speed <= 0 {
		speed = 1
	}
	t := time.NewTicker(quantum)
	defer t.Stop()

	last := timestamp.Now()
	var frac float64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		now := timestamp.Now()
		if now.Before(last) {
			if log.WARNon() {
				log.WARN("itu sim: time going backward with %s\n", last.Sub(now))
			}
			last = now
			continue
		}
		c := now.Sub(last).Seconds()*float64(s.inputHz)*speed + frac
		last = now
		whole := math.Floor(c)
		frac = c - whole
		s.Advance(uint64(whole))
	}
}

// Counter returns TCNT.
func (s *Sim) Counter() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tcnt
}

// Running reports whether channel 0 is counting.
func (s *Sim) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tstr&TSTR_STR0 != 0
}

// Pending reports whether the compare-match interrupt is asserted.
func (s *Sim) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tsr&TSR_IMFA != 0 && s.tier&TIER_IMIEA != 0
}

// Matches returns the number of GRA compare matches so far.
func (s *Sim) Matches() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matches
}

// Overruns returns the number of matches that found IMFA still set.
func (s *Sim) Overruns() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overruns
}
