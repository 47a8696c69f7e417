// Package irq is a software interrupt controller: a vector table of
// handlers with per-line priorities and serialized dispatch.
package irq

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"systick/internal/log"
)

// Line is an interrupt vector number.
type Line uint16

// Handler services one interrupt. A nil return means handled.
type Handler func(line Line) error

const (
	// NumLines is the size of the vector table.
	NumLines = 256
	// MaxPriority is the highest priority level; level 0 masks a line.
	MaxPriority = 15
	// DefaultPriority is the level lines start at.
	DefaultPriority = 1

	// SH1SysTimerIRQ is the ITU0 GRA compare-match vector (IMIA0).
	SH1SysTimerIRQ Line = 80
)

var ErrInvalidLine = errors.New("invalid interrupt line")
var ErrLineBound = errors.New("interrupt line already bound")
var ErrNilHandler = errors.New("nil interrupt handler")
var ErrInvalidPriority = errors.New("invalid interrupt priority")
var ErrUnhandled = errors.New("unhandled interrupt")

// Table dispatches raised lines to their handlers. Dispatch holds a single
// lock for the duration of the handler, so no handler is ever re-entered
// or run concurrently with another one.
type Table struct {
	mu       sync.Mutex // protects handlers and prio
	handlers [NumLines]Handler
	prio     [NumLines]uint8

	dispatch sync.Mutex // held while a handler runs

	delivered [NumLines]atomic.Uint64
	masked    atomic.Uint64
	unhandled atomic.Uint64
}

// NewTable returns a table with no handlers and every line at
// DefaultPriority.
func NewTable() *Table {
	t := &Table{}
	for i := range t.prio {
		t.prio[i] = DefaultPriority
	}
	return t
}

func checkLine(line Line) error {
	if int(line) >= NumLines {
		return fmt.Errorf("irq %d: %w", line, ErrInvalidLine)
	}
	return nil
}

// Attach binds h to line. Binding an already bound line fails.
func (t *Table) Attach(line Line, h Handler) error {
	if err := checkLine(line); err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("irq %d: %w", line, ErrNilHandler)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.handlers[line] != nil {
		return fmt.Errorf("irq %d: %w", line, ErrLineBound)
	}
	t.handlers[line] = h
	if log.DBGon() {
		log.DBG("irq %d: handler attached\n", line)
	}
	return nil
}

// Detach unbinds line.
func (t *Table) Detach(line Line) error {
	if err := checkLine(line); err != nil {
		return err
	}
	t.mu.Lock()
	t.handlers[line] = nil
	t.mu.Unlock()
	return nil
}

// SetPriority sets the priority level of line, 0..MaxPriority.
func (t *Table) SetPriority(line Line, level uint8) error {
	if err := checkLine(line); err != nil {
		return err
	}
	if level > MaxPriority {
		return fmt.Errorf("irq %d level %d: %w", line, level, ErrInvalidPriority)
	}
	t.mu.Lock()
	t.prio[line] = level
	t.mu.Unlock()
	return nil
}

// Priority returns the priority level of line.
func (t *Table) Priority(line Line) uint8 {
	if checkLine(line) != nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.prio[line]
}

// Raise delivers line to its handler. Masked lines (priority 0) are not
// delivered. A raise with no handler bound returns ErrUnhandled.
func (t *Table) Raise(line Line) error {
	if err := checkLine(line); err != nil {
		return err
	}
	t.mu.Lock()
	h := t.handlers[line]
	p := t.prio[line]
	t.mu.Unlock()

	if p == 0 {
		t.masked.Add(1)
		return nil
	}
	if h == nil {
		t.unhandled.Add(1)
		if log.WARNon() {
			log.WARN("irq %d: no handler\n", line)
		}
		return fmt.Errorf("irq %d: %w", line, ErrUnhandled)
	}

	t.dispatch.Lock()
	err := h(line)
	t.dispatch.Unlock()
	t.delivered[line].Add(1)
	if err != nil && log.ERRon() {
		log.ERR("irq %d: handler failed: %s\n", line, err)
	}
	return err
}

// Delivered returns how many times line was dispatched to a handler.
func (t *Table) Delivered(line Line) uint64 {
	if checkLine(line) != nil {
		return 0
	}
	return t.delivered[line].Load()
}

// Masked returns the number of raises dropped because of priority 0.
func (t *Table) Masked() uint64 { return t.masked.Load() }

// Unhandled returns the number of raises with no handler bound.
func (t *Table) Unhandled() uint64 { return t.unhandled.Load() }
