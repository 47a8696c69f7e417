package timing

import (
	"errors"
	"testing"
)

func TestResolveSH1Default(t *testing.T) {
	p := Params{InputHz: 10_000_000, TickHz: 100, CounterBits: 16}
	r, err := Resolve(p, SH1Dividers)
	if err != nil {
		t.Fatalf("Resolve(%+v): %s", p, err)
	}
	if r.Divider != 2 || r.Compare != 50000 || r.CounterHz != 5_000_000 {
		t.Fatalf("Resolve(%+v) = %+v, want divider 2 compare 50000 counter 5MHz", p, r)
	}
	if r.Period().Milliseconds() != 10 {
		t.Errorf("period %s, want 10ms", r.Period())
	}
	if ppm := r.ErrorPPM(p); ppm != 0 {
		t.Errorf("error %f ppm, want 0", ppm)
	}
}

func TestResolveTable(t *testing.T) {
	tests := []struct {
		name string
		p    Params
		div  uint32
		cmp  uint32
	}{
		{"exact fit 65535", Params{65535 * 100, 100, 16}, 1, 65535},
		{"one over 65535", Params{65536 * 100, 100, 16}, 2, 32768},
		{"max divider", Params{20_000_000, 50, 16}, 8, 50000},
		{"tick faster than needed", Params{10_000_000, 1_000_000, 8}, 1, 10},
		{"odd clock rounds", Params{7_372_800, 100, 16}, 2, 36864},
		{"rate above clock", Params{1000, 5000, 16}, 1, 1},
		{"32-bit counter", Params{48_000_000, 1, 32}, 1, 48_000_000},
	}
	for _, tt := range tests {
		r, err := Resolve(tt.p, SH1Dividers)
		if err != nil {
			t.Errorf("%s: unexpected error %s", tt.name, err)
			continue
		}
		if r.Divider != tt.div || r.Compare != tt.cmp {
			t.Errorf("%s: got divider %d compare %d, want %d %d",
				tt.name, r.Divider, r.Compare, tt.div, tt.cmp)
		}
	}
}

func TestResolveUnachievable(t *testing.T) {
	tests := []Params{
		{10_000_000, 1000, 8},  // 10000 increments, needs divider 40
		{10_000_000, 10, 16},   // 1000000 increments, needs divider 16
		{1_000_000_000, 1, 24}, // needs divider 60
	}
	for _, p := range tests {
		r, err := Resolve(p, SH1Dividers)
		if err == nil {
			t.Errorf("Resolve(%+v) = %+v, want error", p, r)
			continue
		}
		if !errors.Is(err, ErrUnachievable) {
			t.Errorf("Resolve(%+v): error %q is not ErrUnachievable", p, err)
		}
		var ce *ConfigError
		if !errors.As(err, &ce) || ce.Params != p {
			t.Errorf("Resolve(%+v): error %#v is not a ConfigError for the params", p, err)
		}
		if r != (Resolved{}) {
			t.Errorf("Resolve(%+v): returned timing %+v with error", p, r)
		}
	}
}

func TestResolveCounterClockZero(t *testing.T) {
	_, err := Resolve(Params{InputHz: 1, TickHz: 1, CounterBits: 16}, []uint32{4, 8})
	if !errors.Is(err, ErrUnachievable) {
		t.Fatalf("expected ErrUnachievable, got %v", err)
	}
}

func TestResolveInvalid(t *testing.T) {
	ok := Params{10_000_000, 100, 16}
	tests := []struct {
		name string
		p    Params
		divs []uint32
	}{
		{"zero input", Params{0, 100, 16}, SH1Dividers},
		{"zero tick", Params{10_000_000, 0, 16}, SH1Dividers},
		{"zero width", Params{10_000_000, 100, 0}, SH1Dividers},
		{"wide counter", Params{10_000_000, 100, 33}, SH1Dividers},
		{"no dividers", ok, nil},
		{"zero divider", ok, []uint32{0, 2}},
		{"descending", ok, []uint32{1, 4, 2}},
		{"duplicate", ok, []uint32{1, 2, 2}},
	}
	for _, tt := range tests {
		_, err := Resolve(tt.p, tt.divs)
		if !errors.Is(err, ErrInvalidParams) {
			t.Errorf("%s: expected ErrInvalidParams, got %v", tt.name, err)
		}
	}
}

// Achieved period must lie within one counter increment (plus the
// half-count rounding of the counter clock) of the wanted period.
func TestResolvePeriodWithinOneIncrement(t *testing.T) {
	for in := uint64(1_000_000); in <= 40_000_000; in += 999_983 {
		for _, tick := range []uint64{50, 60, 100, 250, 1000, 1024} {
			p := Params{InputHz: in, TickHz: tick, CounterBits: 16}
			r, err := Resolve(p, SH1Dividers)
			if err != nil {
				continue
			}
			d := uint64(r.Divider)
			// |cmp*d/in - 1/tick| <= (d + d/2)/in, scaled by in*tick
			got := uint64(r.Compare) * tick * d
			var diff uint64
			if got > in {
				diff = got - in
			} else {
				diff = in - got
			}
			if diff > tick*d+d {
				t.Errorf("%+v -> %+v: period off by %d/%d s", p, r, diff, in*tick)
			}
		}
	}
}

func TestResolveCompareRange(t *testing.T) {
	for _, bits := range []uint{8, 12, 16, 24} {
		maxCmp := MaxCompare(bits)
		for in := uint64(1000); in < 100_000_000; in = in*3 + 7 {
			for _, tick := range []uint64{1, 10, 100, 1000, 10_000} {
				r, err := Resolve(Params{in, tick, bits}, SH1Dividers)
				if err != nil {
					continue
				}
				if r.Compare == 0 || uint64(r.Compare) > maxCmp {
					t.Errorf("in %d tick %d bits %d: compare %d outside [1,%d]",
						in, tick, bits, r.Compare, maxCmp)
				}
			}
		}
	}
}

func TestResolveDividerMonotonic(t *testing.T) {
	var last uint32
	for in := uint64(100_000); in <= 52_000_000; in += 12_345 {
		r, err := Resolve(Params{in, 100, 16}, SH1Dividers)
		if err != nil {
			if !errors.Is(err, ErrUnachievable) {
				t.Fatalf("in %d: %s", in, err)
			}
			// once out of range, higher clocks stay out of range
			last = ^uint32(0)
			continue
		}
		if last == ^uint32(0) {
			t.Fatalf("in %d resolved after an unachievable lower clock", in)
		}
		if r.Divider < last {
			t.Fatalf("in %d: divider dropped from %d to %d", in, last, r.Divider)
		}
		last = r.Divider
	}
}

func TestResolveDeterministic(t *testing.T) {
	p := Params{InputHz: 16_000_000, TickHz: 128, CounterBits: 16}
	a, errA := Resolve(p, SH1Dividers)
	b, errB := Resolve(p, SH1Dividers)
	if a != b || (errA == nil) != (errB == nil) {
		t.Fatalf("two resolutions differ: %+v/%v vs %+v/%v", a, errA, b, errB)
	}
}

func TestMaxCompare(t *testing.T) {
	if MaxCompare(16) != 65535 || MaxCompare(8) != 255 || MaxCompare(32) != 1<<32-1 {
		t.Fatalf("MaxCompare wrong: %d %d %d", MaxCompare(16), MaxCompare(8), MaxCompare(32))
	}
}
