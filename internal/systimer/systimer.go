// Package systimer drives the periodic system tick from ITU channel 0:
// it derives the prescaler and compare value from the configured clock,
// programs the channel, and on every compare-match interrupt advances the
// time base through a tick callback.
package systimer

import (
	"fmt"
	"sync/atomic"

	"systick/internal/irq"
	"systick/internal/itu"
	"systick/internal/log"
	"systick/internal/timing"
)

// DefaultPriority is the interrupt level used when priorities are
// configurable, midway in the SH-1 range.
const DefaultPriority uint8 = 7

// TickFunc advances the time base. It runs in interrupt context once per
// tick and must not block.
type TickFunc func()

// Controller accepts interrupt handler registration.
type Controller interface {
	Attach(line irq.Line, h irq.Handler) error
	Detach(line irq.Line) error
}

// Prioritizer is implemented by controllers with configurable priorities.
type Prioritizer interface {
	SetPriority(line irq.Line, level uint8) error
}

// Config is the system timer configuration.
type Config struct {
	Clock    timing.Params
	Dividers []uint32    // supported prescalers, ascending; nil = timing.SH1Dividers
	Line     irq.Line    // compare-match interrupt line
	Priority *uint8      // interrupt level; nil leaves the controller default
	Ack      itu.AckMode // how IMFA is acknowledged
}

// State is the driver lifecycle state.
type State int32

const (
	StateUninitialized State = iota
	StateArmed
	StateFailedInit
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateArmed:
		return "Armed"
	case StateFailedInit:
		return "FailedInit"
	default:
		return "Unknown"
	}
}

// Driver owns ITU channel 0. After Initialize the registers are only
// touched from the interrupt handler.
type Driver struct {
	cfg  Config
	bus  itu.Bus
	ctl  Controller
	tick TickFunc

	timing timing.Resolved
	state  atomic.Int32
	ticks  atomic.Uint64
}

// New returns an uninitialized driver using bus for register access and
// ctl for interrupt registration.
func New(cfg Config, bus itu.Bus, ctl Controller, tick TickFunc) *Driver {
	if cfg.Dividers == nil {
		cfg.Dividers = timing.SH1Dividers
	}
	return &Driver{cfg: cfg, bus: bus, ctl: ctl, tick: tick}
}

// Initialize resolves the timer setting, programs the channel, attaches the
// tick handler and starts counting. Any error leaves the driver in
// StateFailedInit with the counter stopped; the system has no time base
// and must not continue bring-up.
func (d *Driver) Initialize() error {
	if State(d.state.Load()) != StateUninitialized {
		return &InitError{Op: "initialize", Err: ErrAlreadyInitialized}
	}
	if err := d.initialize(); err != nil {
		d.state.Store(int32(StateFailedInit))
		if log.ERRon() {
			log.ERR("%s\n", err)
		}
		return err
	}
	d.state.Store(int32(StateArmed))
	if log.INFOon() {
		log.INFO("system timer armed on irq %d: %s\n", d.cfg.Line, d.timing)
	}
	return nil
}

func (d *Driver) initialize() error {
	if d.tick == nil {
		return &InitError{Op: "config", Err: ErrNoTickFunc}
	}
	if d.cfg.Clock.CounterBits > itu.CounterBits {
		return &InitError{Op: "config", Err: fmt.Errorf("counter width %d exceeds %d-bit GRA: %w",
			d.cfg.Clock.CounterBits, itu.CounterBits, timing.ErrInvalidParams)}
	}
	r, err := timing.Resolve(d.cfg.Clock, d.cfg.Dividers)
	if err != nil {
		return &InitError{Op: "resolve", Err: err}
	}
	tpsc, err := itu.DividerBits(r.Divider)
	if err != nil {
		return &InitError{Op: "resolve", Err: err}
	}
	d.timing = r

	d.bus.Write16(itu.TCNT0, 0)
	// interrupt when TCNT reaches GRA
	d.bus.Write16(itu.GRA0, uint16(r.Compare))
	d.bus.Write8(itu.TCR0, itu.TCR_CGRA|tpsc)
	// GRA used with no input/output pins
	d.bus.Write8(itu.TIOR0, 0)
	d.bus.Write8(itu.TSR0, d.clearAll())

	if err := d.ctl.Attach(d.cfg.Line, d.onTick); err != nil {
		return &InitError{Op: "attach", Err: err}
	}
	d.bus.Write8(itu.TIER0, itu.TIER_IMIEA)

	if d.cfg.Priority != nil {
		if p, ok := d.ctl.(Prioritizer); ok {
			if err := p.SetPriority(d.cfg.Line, *d.cfg.Priority); err != nil {
				d.bus.Write8(itu.TIER0, 0)
				if derr := d.ctl.Detach(d.cfg.Line); derr != nil && log.WARNon() {
					log.WARN("system timer: detach irq %d: %s\n", d.cfg.Line, derr)
				}
				return &InitError{Op: "priority", Err: err}
			}
		} else if log.WARNon() {
			log.WARN("system timer: controller has no priorities, level %d ignored\n",
				*d.cfg.Priority)
		}
	}

	// TSTR is shared with the other channels
	d.bus.Write8(itu.TSTR, d.bus.Read8(itu.TSTR)|itu.TSTR_STR0)
	return nil
}

// clearAll is the TSR value that clears every status flag.
func (d *Driver) clearAll() uint8 {
	if d.cfg.Ack == itu.AckWrite1 {
		return itu.TSR_FLAGS
	}
	return 0
}

// onTick is the compare-match interrupt handler. A GRA match in this mode
// is always a real tick, so there is no spurious-interrupt check.
func (d *Driver) onTick(irq.Line) error {
	d.tick()
	d.ticks.Add(1)

	if d.cfg.Ack == itu.AckWrite1 {
		d.bus.Write8(itu.TSR0, itu.TSR_IMFA)
	} else {
		tsr := d.bus.Read8(itu.TSR0)
		d.bus.Write8(itu.TSR0, tsr&^itu.TSR_IMFA)
	}
	return nil
}

// State returns the lifecycle state.
func (d *Driver) State() State { return State(d.state.Load()) }

// Timing returns the resolved timer setting; zero before a successful
// Initialize.
func (d *Driver) Timing() timing.Resolved { return d.timing }

// Ticks returns the number of handled tick interrupts.
func (d *Driver) Ticks() uint64 { return d.ticks.Load() }
