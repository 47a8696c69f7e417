package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/tarm/serial"

	"systick/internal/config"
	"systick/internal/irq"
	"systick/internal/itu"
	"systick/internal/job"
	"systick/internal/log"
	"systick/internal/sched"
	"systick/internal/systimer"
)

const (
	heartbeatTimer sched.TimerID = 1
	runTimer       sched.TimerID = 2
)

var configPath = flag.String("config", "config.yml", "configuration file")

func main() {
	flag.Parse()

	// Read the configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !log.SetLevel(cfg.Log.Level) && log.WARNon() {
		log.WARN("unknown log level %q\n", cfg.Log.Level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	tcfg, err := cfg.SysTimer()
	if err != nil {
		return err
	}

	tb := sched.New(cfg.Sched())
	out, err := openOutput(cfg.Log)
	if err != nil {
		return err
	}
	defer out.Close()
	tb.SetOutput(out)

	// bring up the tick source: peripheral, interrupt controller, driver
	sim := itu.NewSim(cfg.Clock.InputHz, tcfg.Ack)
	table := irq.NewTable()
	sim.Connect(func() { table.Raise(tcfg.Line) })
	drv := systimer.New(tcfg, sim, table, tb.ProcessTimer)
	if err := drv.Initialize(); err != nil {
		// no time base, stop bring-up here
		return err
	}
	fmt.Printf("System timer: %s, irq %d\n", drv.Timing(), tcfg.Line)
	if cfg.Log.CSV != "" {
		if err := tb.EnableCSVLogging(cfg.Log.CSV); err != nil {
			return fmt.Errorf("csv log: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		tb.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		sim.Run(ctx, cfg.Quantum(), cfg.Sim.Speed)
	}()

	if n := cfg.Jobs.HeartbeatTicks; n > 0 {
		beats := make(chan int64, 1)
		if err := tb.Start(sched.NewPeriodic(heartbeatTimer, n, job.Signal(beats))); err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			heartbeat(ctx, beats)
		}()
	}

	if cfg.Sim.RunTicks > 0 {
		if _, err := job.SleepTicks(ctx, tb, runTimer, cfg.Sim.RunTicks); err != nil && log.DBGon() {
			log.DBG("run interrupted: %s\n", err)
		}
	} else {
		<-ctx.Done()
	}
	cancel()
	wg.Wait()

	fmt.Printf("Stopped after %d ticks (%d matches, %d overruns, %d events dropped)\n",
		drv.Ticks(), sim.Matches(), sim.Overruns(), tb.DroppedEvents())
	return nil
}

// heartbeat reports liveness outside interrupt context.
func heartbeat(ctx context.Context, beats <-chan int64) {
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-beats:
			if log.INFOon() {
				log.INFO("heartbeat at tick %d\n", now)
			}
		}
	}
}

// openOutput returns the serial console when one is configured, stdout
// otherwise.
func openOutput(c config.Log) (io.WriteCloser, error) {
	if c.Serial == "" {
		return nopCloser{os.Stdout}, nil
	}
	port, err := serial.OpenPort(&serial.Config{Name: c.Serial, Baud: c.Baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", c.Serial, err)
	}
	return port, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
