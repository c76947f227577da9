// Package status drives the on-board RGB status LEDs.
//
// Patterns:
//
//	Off        dark
//	On         solid
//	SlowFlash  250 ms on, 250 ms off
//	Flash      150 ms on, 150 ms off
//	FastFlash  50 ms on, 50 ms off
//	Alternate  500 ms in the main colour, 500 ms in the alternate colour
//	Blink3     three 150 ms blinks, then a one second pause
package status

import (
	"image/color"
	"time"
)

// Pattern selects how the LEDs are animated.
type Pattern uint8

const (
	Off Pattern = iota
	On
	SlowFlash
	FastFlash
	Flash
	Alternate
	Blink3
)

const (
	blink3Pause = time.Second
	blink3Count = 3
)

// Colours used by the firmware.
var (
	Dark   = color.RGBA{}
	Purple = color.RGBA{R: 4, G: 1, B: 1} // dim, shown during init
	Red    = color.RGBA{R: 64}
	Green  = color.RGBA{G: 64}
	Blue   = color.RGBA{B: 64}
	Amber  = color.RGBA{R: 64, G: 24}
)

// Strip is a chain of addressable LEDs. ws2812.Device satisfies it.
type Strip interface {
	WriteColors(buf []color.RGBA) error
}

// LED animates every LED of a strip with one pattern.
type LED struct {
	strip  Strip
	pixels []color.RGBA

	pattern   Pattern
	main, alt color.RGBA

	lastToggle time.Time
	isOn       bool
	blinks     int
	dirty      bool
}

// New returns an LED driving count pixels, initially off.
func New(strip Strip, count int) *LED {
	return &LED{strip: strip, pixels: make([]color.RGBA, count), dirty: true}
}

// Set changes the pattern and colour. alt is only used by Alternate. Setting
// the current pattern again keeps its phase.
func (l *LED) Set(p Pattern, main, alt color.RGBA) {
	if p == l.pattern && main == l.main && alt == l.alt {
		return
	}
	l.pattern = p
	l.main = main
	l.alt = alt
	l.isOn = false
	l.blinks = 0
	l.lastToggle = time.Time{}
	l.dirty = true
}

// Pattern returns the current pattern.
func (l *LED) Pattern() Pattern { return l.pattern }

// Update advances the animation to now and writes the strip when the output
// changed.
func (l *LED) Update(now time.Time) error {
	switch l.pattern {
	case Off:
		l.isOn = false
	case On:
		l.isOn = true
	case SlowFlash:
		l.toggleAfter(now, 250*time.Millisecond)
	case FastFlash:
		l.toggleAfter(now, 50*time.Millisecond)
	case Flash:
		l.toggleAfter(now, 150*time.Millisecond)
	case Alternate:
		l.toggleAfter(now, 500*time.Millisecond)
	case Blink3:
		l.blink3(now)
	}
	if !l.dirty {
		return nil
	}
	c := Dark
	switch {
	case l.isOn:
		c = l.main
	case l.pattern == Alternate:
		c = l.alt
	}
	for i := range l.pixels {
		l.pixels[i] = c
	}
	if err := l.strip.WriteColors(l.pixels); err != nil {
		// retried on the next Update
		return err
	}
	l.dirty = false
	return nil
}

func (l *LED) toggleAfter(now time.Time, d time.Duration) {
	if l.lastToggle.IsZero() || now.Sub(l.lastToggle) >= d {
		l.isOn = !l.isOn
		l.lastToggle = now
		l.dirty = true
	}
}

func (l *LED) blink3(now time.Time) {
	if l.blinks == blink3Count {
		if now.Sub(l.lastToggle) < blink3Pause {
			return
		}
		l.blinks = 0
		l.lastToggle = time.Time{}
	}
	wasOn := l.isOn
	l.toggleAfter(now, 150*time.Millisecond)
	if wasOn && !l.isOn {
		l.blinks++
	}
}

// Halt shows the fault pattern forever. Init failures end here. It only
// returns if the strip fails, with that error.
func (l *LED) Halt(now func() time.Time, sleep func(time.Duration)) error {
	l.Set(FastFlash, Red, Dark)
	for {
		if err := l.Update(now()); err != nil {
			return err
		}
		sleep(10 * time.Millisecond)
	}
}
