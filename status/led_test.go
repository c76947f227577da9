package status

import (
	"errors"
	"image/color"
	"testing"
	"time"
)

type fakeStrip struct {
	writes [][]color.RGBA
	err    error
	failAt int // fail from this write on, 1-based; 0 never
}

func (s *fakeStrip) WriteColors(buf []color.RGBA) error {
	s.writes = append(s.writes, append([]color.RGBA(nil), buf...))
	if s.failAt > 0 && len(s.writes) >= s.failAt {
		return errors.New("strip gone")
	}
	return s.err
}

func (s *fakeStrip) last() color.RGBA {
	if len(s.writes) == 0 {
		return color.RGBA{R: 1, G: 2, B: 3, A: 4}
	}
	w := s.writes[len(s.writes)-1]
	return w[0]
}

// step is the colour expected after an update at ms.
type step struct {
	ms   int
	want color.RGBA
}

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

func TestPatterns(t *testing.T) {
	tests := []struct {
		name    string
		pattern Pattern
		alt     color.RGBA
		steps   []step
	}{
		{name: "on", pattern: On, steps: []step{{0, Green}, {1000, Green}}},
		{name: "off", pattern: Off, steps: []step{{0, Dark}, {1000, Dark}}},
		{name: "slow flash", pattern: SlowFlash, steps: []step{{0, Green}, {249, Green}, {250, Dark}, {499, Dark}, {500, Green}}},
		{name: "fast flash", pattern: FastFlash, steps: []step{{0, Green}, {50, Dark}, {100, Green}}},
		{name: "alternate", pattern: Alternate, alt: Red, steps: []step{{0, Green}, {400, Green}, {500, Red}, {1000, Green}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strip := &fakeStrip{}
			led := New(strip, 3)
			led.Set(tt.pattern, Green, tt.alt)
			for _, s := range tt.steps {
				if err := led.Update(at(s.ms)); err != nil {
					t.Fatal(err)
				}
				if got := strip.last(); got != s.want {
					t.Errorf("at %d ms colour = %v, want %v", s.ms, got, s.want)
				}
			}
			for _, w := range strip.writes {
				if len(w) != 3 {
					t.Fatalf("wrote %d pixels, want 3", len(w))
				}
			}
		})
	}
}

func TestUpdateWritesOnlyOnChange(t *testing.T) {
	strip := &fakeStrip{}
	led := New(strip, 1)
	led.Set(On, Blue, Dark)
	for ms := 0; ms < 100; ms += 10 {
		led.Update(at(ms))
	}
	if len(strip.writes) != 1 {
		t.Fatalf("%d writes, want 1", len(strip.writes))
	}

	// same pattern again keeps state
	led.Set(On, Blue, Dark)
	led.Update(at(200))
	if len(strip.writes) != 1 {
		t.Fatalf("%d writes after repeated Set, want 1", len(strip.writes))
	}

	led.Set(On, Red, Dark)
	led.Update(at(300))
	if len(strip.writes) != 2 || strip.last() != Red {
		t.Fatalf("colour change not written: %v", strip.writes)
	}
}

func TestBlink3(t *testing.T) {
	strip := &fakeStrip{}
	led := New(strip, 1)
	led.Set(Blink3, Amber, Dark)

	var ons int
	prev := Dark
	// step through two full cycles: 3 blinks take 750 ms, then a 1 s pause
	for ms := 0; ms <= 3400; ms += 10 {
		led.Update(at(ms))
		cur := strip.last()
		if cur == Amber && prev != Amber {
			ons++
		}
		prev = cur
		if ms == 1500 && cur != Dark {
			t.Fatalf("lit during the pause")
		}
	}
	if ons != 6 {
		t.Fatalf("%d blinks in two cycles, want 6", ons)
	}
}

func TestUpdateReturnsStripError(t *testing.T) {
	strip := &fakeStrip{err: errors.New("no pin")}
	led := New(strip, 1)
	led.Set(On, Red, Dark)
	if err := led.Update(at(0)); err == nil {
		t.Fatal("expected error")
	}

	// a failed write is tried again even though nothing changed
	strip.err = nil
	if err := led.Update(at(1)); err != nil {
		t.Fatal(err)
	}
	if len(strip.writes) != 2 {
		t.Fatalf("%d writes, want a retry", len(strip.writes))
	}
	if err := led.Update(at(2)); err != nil || len(strip.writes) != 2 {
		t.Fatalf("unchanged output written again: %d writes, %v", len(strip.writes), err)
	}
}

func TestHaltReturnsStripError(t *testing.T) {
	strip := &fakeStrip{failAt: 4}
	led := New(strip, 2)
	ms := 0
	err := led.Halt(func() time.Time { return at(ms) }, func(d time.Duration) { ms += int(d / time.Millisecond) })
	if err == nil || err.Error() != "strip gone" {
		t.Fatalf("Halt = %v", err)
	}
	if len(strip.writes) != 4 || led.Pattern() != FastFlash {
		t.Fatalf("%d writes, pattern %v", len(strip.writes), led.Pattern())
	}
	if strip.writes[0][0] != Red || strip.writes[1][0] != Dark {
		t.Fatalf("halt colours %v", strip.writes[:2])
	}
}
