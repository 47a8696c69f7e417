package sched

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestProcessTimerOrder(t *testing.T) {
	s := New(Config{})
	var order []TimerID
	rec := func(id TimerID, now int64) { order = append(order, id) }

	for _, tm := range []*Timer{
		NewTimer(3, 2, rec),
		NewTimer(1, 2, rec),
		NewTimer(2, 1, rec),
		NewTimer(4, 5, rec),
	} {
		if err := s.Start(tm); err != nil {
			t.Fatalf("Start(%d): %s", tm.ID, err)
		}
	}
	s.ProcessTimer()
	s.ProcessTimer()
	want := []TimerID{2, 1, 3}
	if len(order) != len(want) {
		t.Fatalf("fired %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("fired %v, want %v", order, want)
		}
	}
	if s.Pending() != 1 || s.Now() != 2 {
		t.Fatalf("pending %d now %d, want 1 2", s.Pending(), s.Now())
	}
}

func TestPeriodicTimer(t *testing.T) {
	s := New(Config{})
	var at []int64
	p := NewPeriodic(7, 3, func(id TimerID, now int64) { at = append(at, now) })
	if err := s.Start(p); err != nil {
		t.Fatalf("Start: %s", err)
	}
	for i := 0; i < 10; i++ {
		s.ProcessTimer()
	}
	if len(at) != 3 || at[0] != 3 || at[1] != 6 || at[2] != 9 {
		t.Fatalf("periodic expiries %v, want [3 6 9]", at)
	}
	if p.Fired != 3 || s.Pending() != 1 {
		t.Fatalf("fired %d pending %d", p.Fired, s.Pending())
	}
	if err := s.Cancel(7); err != nil {
		t.Fatalf("Cancel: %s", err)
	}
	for i := 0; i < 5; i++ {
		s.ProcessTimer()
	}
	if len(at) != 3 || s.Pending() != 0 {
		t.Fatalf("cancelled timer fired: %v", at)
	}
}

func TestTimerCancelsItself(t *testing.T) {
	s := New(Config{})
	n := 0
	s.Start(NewPeriodic(1, 1, func(id TimerID, now int64) {
		n++
		if n == 2 {
			s.Cancel(id)
		}
	}))
	for i := 0; i < 5; i++ {
		s.ProcessTimer()
	}
	if n != 2 {
		t.Fatalf("fired %d times, want 2", n)
	}
}

func TestStartCancelErrors(t *testing.T) {
	s := New(Config{})
	if err := s.Start(NewTimer(1, 1, nil)); err != nil {
		t.Fatalf("Start: %s", err)
	}
	if err := s.Start(NewTimer(1, 4, nil)); !errors.Is(err, ErrDuplicateTimer) {
		t.Errorf("duplicate start: %v", err)
	}
	if err := s.Cancel(9); !errors.Is(err, ErrNoTimer) {
		t.Errorf("cancel unknown: %v", err)
	}
	if err := s.Start(nil); err == nil {
		t.Errorf("nil timer accepted")
	}
	if NewTimer(2, 0, nil).Delay != 1 {
		t.Errorf("zero delay not clamped")
	}
}

func TestProcessTimerNeverBlocks(t *testing.T) {
	s := New(Config{EventBuffer: 1, NotifyDepth: 1, TickEvents: true})
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.ProcessTimer()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("ProcessTimer blocked with nobody draining events")
	}
	if s.Now() != 100 {
		t.Fatalf("now %d, want 100", s.Now())
	}
	if s.DroppedEvents() != 99 || s.Clock().Dropped() != 99 {
		t.Fatalf("dropped events %d notifications %d, want 99 99",
			s.DroppedEvents(), s.Clock().Dropped())
	}
}

func TestStatusEvents(t *testing.T) {
	s := New(Config{TickEvents: true})
	s.Start(NewTimer(5, 1, nil))
	s.ProcessTimer()
	s.Start(NewTimer(6, 3, nil))
	s.Cancel(6)

	want := []StatusKind{StatusArm, StatusTick, StatusExpire, StatusArm, StatusCancel}
	for i, k := range want {
		select {
		case ev := <-s.StatusChannel():
			if ev.Kind != k {
				t.Fatalf("event %d: %s, want %s", i, ev.Kind, k)
			}
			if k == StatusExpire && (ev.TimerID != 5 || ev.Fired != 1 || ev.Tick != 1) {
				t.Fatalf("expire event %+v", ev)
			}
		default:
			t.Fatalf("event %d (%s) missing", i, k)
		}
	}
}

func TestRunWritesLog(t *testing.T) {
	s := New(Config{TickEvents: true})
	var out bytes.Buffer
	s.SetOutput(&out)
	path := filepath.Join(t.TempDir(), "events.csv")
	if err := s.EnableCSVLogging(path); err != nil {
		t.Fatalf("EnableCSVLogging: %s", err)
	}

	s.Start(NewTimer(42, 2, nil))
	s.ProcessTimer()
	s.ProcessTimer()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	deadline := time.Now().Add(2 * time.Second)
	for len(s.statusCh) > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %s", err)
	}

	text := out.String()
	// arm and expire only, ticks go to the CSV log
	if strings.Count(text, "\n") != 2 || !strings.Contains(text, "Expired") || !strings.Contains(text, "Timer: 0042") {
		t.Fatalf("unexpected log output:\n%s", text)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %s", err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %s", err)
	}
	// header, arm, 2 ticks, expire
	if len(recs) != 5 || recs[0][0] != "elapsed_ns" || recs[4][2] != "Expired" {
		t.Fatalf("csv records: %v", recs)
	}
}

func TestStatusKindString(t *testing.T) {
	for k, want := range map[StatusKind]string{
		StatusTick: "Tick", StatusArm: "Armed", StatusExpire: "Expired",
		StatusCancel: "Cancelled", StatusKind(42): "Unknown",
	} {
		if k.String() != want {
			t.Errorf("%d: %q, want %q", k, k.String(), want)
		}
	}
}

func TestRunDrainsQueuedEvents(t *testing.T) {
	s := New(Config{TickEvents: true})
	var out bytes.Buffer
	s.SetOutput(&out)
	path := filepath.Join(t.TempDir(), "events.csv")
	if err := s.EnableCSVLogging(path); err != nil {
		t.Fatalf("EnableCSVLogging: %s", err)
	}
	s.Start(NewTimer(2, 3, nil))
	for i := 0; i < 3; i++ {
		s.ProcessTimer()
	}

	// already done: nothing is consumed before the shutdown path
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %s", err)
	}
	if len(s.statusCh) != 0 {
		t.Fatalf("%d events left queued", len(s.statusCh))
	}
	if !strings.Contains(out.String(), "Expired") {
		t.Fatalf("final expiry not printed:\n%s", out.String())
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %s", err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %s", err)
	}
	// header, arm, 3 ticks, expire
	if len(recs) != 6 || recs[5][2] != "Expired" {
		t.Fatalf("csv records: %v", recs)
	}
}
