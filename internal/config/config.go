// Package config loads the systick YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	yaml "github.com/goccy/go-yaml"

	"systick/internal/irq"
	"systick/internal/itu"
	"systick/internal/sched"
	"systick/internal/systimer"
	"systick/internal/timing"
)

// Config mirrors config.yml
type Config struct {
	Clock Clock `yaml:"clock"`
	IRQ   IRQ   `yaml:"irq"`
	Sim   Sim   `yaml:"sim"`
	Log   Log   `yaml:"log"`
	Jobs  Jobs  `yaml:"jobs"`
}

// Clock is the tick timer clock setup. It is not clamped: values the
// timer cannot honor fail system timer initialization.
type Clock struct {
	InputHz     uint64   `yaml:"input_hz"`     // 10000000 (by default)
	TickHz      uint64   `yaml:"tick_hz"`      // 100 (by default)
	CounterBits uint     `yaml:"counter_bits"` // 16 (by default)
	Dividers    []uint32 `yaml:"dividers"`     // [1, 2, 4, 8] (by default)
}

type IRQ struct {
	Line     uint16 `yaml:"line"`     // 80, ITU0 IMIA0 (by default)
	Priority *uint8 `yaml:"priority"` // unset = controller default
	Ack      string `yaml:"ack"`      // w0c or w1c, w0c (by default)
}

type Sim struct {
	Speed     float64 `yaml:"speed"`      // simulated seconds per wall second, 1 (by default)
	QuantumMS int     `yaml:"quantum_ms"` // host clock polling, 1 (by default)
	RunTicks  int64   `yaml:"run_ticks"`  // stop after this many ticks, 0 = until interrupted
}

type Log struct {
	Level      string `yaml:"level"`       // err, warn, info, dbg; warn (by default)
	CSV        string `yaml:"csv"`         // CSV event log path, empty = off
	Serial     string `yaml:"serial"`      // serial console for event output, empty = stdout
	Baud       int    `yaml:"baud"`        // 115200 (by default)
	TickEvents bool   `yaml:"tick_events"` // log every tick to the CSV log
}

type Jobs struct {
	HeartbeatTicks int64 `yaml:"heartbeat_ticks"` // 100 (by default), 0 = off
}

// Default returns the configuration of the reference board: a 10 MHz
// SH-1 ITU driving 100 ticks per second.
func Default() Config {
	return Config{
		Clock: Clock{
			InputHz:     10_000_000,
			TickHz:      100,
			CounterBits: 16,
			Dividers:    append([]uint32(nil), timing.SH1Dividers...),
		},
		IRQ: IRQ{
			Line: uint16(irq.SH1SysTimerIRQ),
			Ack:  "w0c",
		},
		Sim: Sim{
			Speed:     1,
			QuantumMS: 1,
		},
		Log: Log{
			Level: "warn",
			Baud:  115200,
		},
		Jobs: Jobs{
			HeartbeatTicks: 100,
		},
	}
}

// Load reads YAML and overrides defaults; empty path or a missing file =
// defaults only. A file that cannot be read or parsed is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("config: %w", err)
	}

	// sanity clamps
	if cfg.Sim.Speed <= 0 {
		cfg.Sim.Speed = 1
	}
	if cfg.Sim.QuantumMS <= 0 {
		cfg.Sim.QuantumMS = 1
	}
	if cfg.Sim.RunTicks < 0 {
		cfg.Sim.RunTicks = 0
	}
	if cfg.Log.Baud <= 0 {
		cfg.Log.Baud = 115200
	}
	if cfg.Jobs.HeartbeatTicks < 0 {
		cfg.Jobs.HeartbeatTicks = 0
	}
	return cfg, nil
}

// SysTimer returns the system timer configuration.
func (c Config) SysTimer() (systimer.Config, error) {
	ack, err := itu.ParseAckMode(c.IRQ.Ack)
	if err != nil {
		return systimer.Config{}, fmt.Errorf("config: %w", err)
	}
	return systimer.Config{
		Clock: timing.Params{
			InputHz:     c.Clock.InputHz,
			TickHz:      c.Clock.TickHz,
			CounterBits: c.Clock.CounterBits,
		},
		Dividers: c.Clock.Dividers,
		Line:     irq.Line(c.IRQ.Line),
		Priority: c.IRQ.Priority,
		Ack:      ack,
	}, nil
}

// Sched returns the time base configuration.
func (c Config) Sched() sched.Config {
	return sched.Config{TickEvents: c.Log.TickEvents}
}

// Quantum returns the simulation host clock polling interval.
func (c Config) Quantum() time.Duration {
	return time.Duration(c.Sim.QuantumMS) * time.Millisecond
}
