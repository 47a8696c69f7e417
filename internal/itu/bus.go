package itu

import (
	"fmt"
	"sync"
)

// Bus is typed access to memory-mapped registers.
type Bus interface {
	Read8(addr uint32) uint8
	Write8(addr uint32, v uint8)
	Read16(addr uint32) uint16
	Write16(addr uint32, v uint16)
}

// Op is a register access kind.
type Op uint8

const (
	OpRead Op = iota
	OpWrite
)

func (o Op) String() string {
	if o == OpWrite {
		return "W"
	}
	return "R"
}

// Access is one recorded register access.
type Access struct {
	Op    Op
	Addr  uint32
	Width uint8 // 8 or 16
	Val   uint16
}

func (a Access) String() string {
	return fmt.Sprintf("%s%d 0x%08x=0x%04x", a.Op, a.Width, a.Addr, a.Val)
}

// Trace wraps a Bus and records every access going through it.
type Trace struct {
	Bus Bus

	mu  sync.Mutex
	log []Access
}

// NewTrace returns a recording wrapper around b.
func NewTrace(b Bus) *Trace {
	return &Trace{Bus: b}
}

func (t *Trace) record(a Access) {
	t.mu.Lock()
	t.log = append(t.log, a)
	t.mu.Unlock()
}

func (t *Trace) Read8(addr uint32) uint8 {
	v := t.Bus.Read8(addr)
	t.record(Access{OpRead, addr, 8, uint16(v)})
	return v
}

func (t *Trace) Write8(addr uint32, v uint8) {
	t.record(Access{OpWrite, addr, 8, uint16(v)})
	t.Bus.Write8(addr, v)
}

func (t *Trace) Read16(addr uint32) uint16 {
	v := t.Bus.Read16(addr)
	t.record(Access{OpRead, addr, 16, v})
	return v
}

func (t *Trace) Write16(addr uint32, v uint16) {
	t.record(Access{OpWrite, addr, 16, v})
	t.Bus.Write16(addr, v)
}

// Accesses returns a copy of the recorded accesses.
func (t *Trace) Accesses() []Access {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Access(nil), t.log...)
}

// Writes counts recorded writes to addr.
func (t *Trace) Writes(addr uint32) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, a := range t.log {
		if a.Op == OpWrite && a.Addr == addr {
			n++
		}
	}
	return n
}

// Reset drops the recorded accesses.
func (t *Trace) Reset() {
	t.mu.Lock()
	t.log = t.log[:0]
	t.mu.Unlock()
}
