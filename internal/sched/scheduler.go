// internal/sched/scheduler.go

package sched

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/intuitivelabs/timestamp"

	"systick/internal/log"
)

var ErrDuplicateTimer = errors.New("timer already exists")
var ErrNoTimer = errors.New("no such timer")

// Scheduler owns the system time base. ProcessTimer is its tick entry
// point: the system timer interrupt calls it once per tick, it advances
// the tick count and runs every timer that became due.
type Scheduler struct {
	mu     sync.Mutex         // protects the timer state
	clock  *TickClock         // system tick counter
	rbt    *redblacktree.Tree // pending timers ordered by expiry tick and timer ID
	timers map[TimerID]*Timer // all pending timers by ID

	statusCh   chan StatusEvent // status events, never blocks the tick path
	dropped    atomic.Uint64    // events lost to a full statusCh
	tickEvents bool
	start      timestamp.TS

	// logging-related
	out       io.Writer
	csvFile   *os.File
	csvWriter *csv.Writer
}

// New creates a new Scheduler instance with the given configuration.
func New(cfg Config) *Scheduler {
	cfg = cfg.withDefaults()
	return &Scheduler{
		clock:      NewTickClock(cfg.NotifyDepth),
		rbt:        redblacktree.NewWith(cmp),
		timers:     make(map[TimerID]*Timer),
		statusCh:   make(chan StatusEvent, cfg.EventBuffer),
		tickEvents: cfg.TickEvents,
		start:      timestamp.Now(),
		out:        os.Stdout,
	}
}

// SetOutput sets where Run prints events. Must be called before Run().
func (s *Scheduler) SetOutput(w io.Writer) { s.out = w }

// EnableCSVLogging opens the given file path for CSV logging of events.
// Must be called before Run().
func (s *Scheduler) EnableCSVLogging(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)

	// write header
	w.Write([]string{"elapsed_ns", "tick", "event", "timer_id", "fired"})
	w.Flush()
	s.csvFile = f
	s.csvWriter = w
	return w.Error()
}

// StatusChannel exposes read‑only stream (optional consumers).
// Do not mix with Run.
func (s *Scheduler) StatusChannel() <-chan StatusEvent { return s.statusCh }

// Clock returns the tick clock.
func (s *Scheduler) Clock() *TickClock { return s.clock }

// Now returns the current tick.
func (s *Scheduler) Now() int64 { return s.clock.Count() }

// Pending returns the number of armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rbt.Size()
}

// DroppedEvents returns the number of status events lost because no one
// drained them in time.
func (s *Scheduler) DroppedEvents() uint64 { return s.dropped.Load() }

// Run prints status events until ctx is done, then prints the events
// still queued before closing the CSV log.
func (s *Scheduler) Run(ctx context.Context) error {
	defer func() {
		if s.csvFile != nil {
			s.csvWriter.Flush()
			s.csvFile.Close()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			s.drain()
			return nil
		case ev := <-s.statusCh:
			s.handleEvent(ev)
		}
	}
}

// drain handles the queued events without waiting for new ones.
func (s *Scheduler) drain() {
	for {
		select {
		case ev := <-s.statusCh:
			s.handleEvent(ev)
		default:
			return
		}
	}
}

// Start arms t to expire t.Delay ticks from now and emits a StatusArm event.
func (s *Scheduler) Start(t *Timer) error {
	if t == nil {
		return errors.New("nil timer")
	}
	s.mu.Lock()
	if _, dup := s.timers[t.ID]; dup {
		s.mu.Unlock()
		return fmt.Errorf("timer %d: %w", t.ID, ErrDuplicateTimer)
	}
	now := s.clock.Count()
	t.Expires = now + t.Delay
	s.rbt.Put(nodeKey{t.Expires, t.ID}, t)
	s.timers[t.ID] = t
	s.mu.Unlock() // NOTE: Unlock before emitting, the event may be dropped but never waits

	s.emit(StatusEvent{Kind: StatusArm, Tick: now, TimerID: t.ID})
	return nil
}

// Cancel disarms a pending timer.
func (s *Scheduler) Cancel(id TimerID) error {
	s.mu.Lock()
	t, ok := s.timers[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("timer %d: %w", id, ErrNoTimer)
	}
	s.rbt.Remove(nodeKey{t.Expires, t.ID})
	delete(s.timers, id)
	fired := t.Fired
	s.mu.Unlock()

	s.emit(StatusEvent{Kind: StatusCancel, Tick: s.clock.Count(), TimerID: id, Fired: fired})
	return nil
}

// ProcessTimer advances the time base by one tick and runs the timers that
// expire on it, earliest first. Periodic timers are re-armed before their
// work runs, so the work may cancel them. It is called from interrupt
// context and never blocks.
func (s *Scheduler) ProcessTimer() {
	now := s.clock.Tick()
	if s.tickEvents {
		s.emit(StatusEvent{Kind: StatusTick, Tick: now})
	}

	for {
		s.mu.Lock()
		node := s.rbt.Left()
		if node == nil || node.Key.(nodeKey).expires > now {
			s.mu.Unlock()
			return
		}
		key := node.Key.(nodeKey)
		t := node.Value.(*Timer)
		s.rbt.Remove(key)
		t.Fired++
		fired := t.Fired
		if t.Period > 0 {
			t.Expires = now + t.Period
			s.rbt.Put(nodeKey{t.Expires, t.ID}, t)
		} else {
			delete(s.timers, t.ID)
		}
		fn := t.Fn
		s.mu.Unlock()

		if fn != nil {
			fn(t.ID, now)
		}
		s.emit(StatusEvent{Kind: StatusExpire, Tick: now, TimerID: t.ID, Fired: fired})
	}
}

func (s *Scheduler) emit(ev StatusEvent) {
	ev.Elapsed = timestamp.Now().Sub(s.start)
	select {
	case s.statusCh <- ev:
	default:
		if s.dropped.Add(1) == 1 && log.WARNon() {
			log.WARN("time base: status events dropped, consumer too slow\n")
		}
	}
}

func (s *Scheduler) handleEvent(ev StatusEvent) {
	// an auxiliary function to center the event kind in the output
	center := func(str string, width int) string {
		spaces := int(float64(width-len(str)) / 2)
		return strings.Repeat(" ", spaces) + str + strings.Repeat(" ", width-(spaces+len(str)))
	}

	// tick events are only printed to the CSV log, for the brevity of output
	if ev.Kind != StatusTick && s.out != nil {
		fmt.Fprintf(s.out, "+%12s = Tick: %07d [%s] => Timer: %04d, fired: %04d\n",
			ev.Elapsed.Round(time.Microsecond),
			ev.Tick,
			center(ev.Kind.String(), 12),
			ev.TimerID,
			ev.Fired,
		)
	}

	// CSV output
	if s.csvWriter != nil {
		rec := []string{
			strconv.FormatInt(int64(ev.Elapsed), 10),
			strconv.FormatInt(ev.Tick, 10),
			ev.Kind.String(),
			strconv.FormatUint(uint64(ev.TimerID), 10),
			strconv.FormatInt(ev.Fired, 10),
		}
		s.csvWriter.Write(rec)
		s.csvWriter.Flush()
	}
}

// nodeKey is used as a key in the red-black tree.
type nodeKey struct {
	expires int64
	id      TimerID
}

// cmp orders nodeKeys by expiry tick, then timer ID.
func cmp(a, b any) int {
	ka, kb := a.(nodeKey), b.(nodeKey)
	switch {
	case ka.expires < kb.expires:
		return -1
	case ka.expires > kb.expires:
		return 1
	case ka.id < kb.id:
		return -1
	case ka.id > kb.id:
		return 1
	default:
		return 0
	}
}
