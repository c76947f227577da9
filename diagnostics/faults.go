// Package diagnostics keeps one saturating fault counter per subsystem.
package diagnostics

// Subsystem identifies who counted a fault.
type Subsystem uint8

const (
	Baro Subsystem = iota
	IMU
	GPS
	Radio
	CAN
	numSubsystems
)

var names = [numSubsystems]string{"baro", "imu", "gps", "radio", "can"}

func (s Subsystem) String() string {
	if s < numSubsystems {
		return names[s]
	}
	return "unknown"
}

// Counters are written from interrupt context and read by tasks. Each counter
// is a single byte so a reader never sees a torn value.
type Counters struct {
	counts [numSubsystems]uint8
}

// Inc counts one fault, sticking at 255.
func (c *Counters) Inc(s Subsystem) {
	if s >= numSubsystems {
		return
	}
	if c.counts[s] < 0xFF {
		c.counts[s]++
	}
}

// Count returns the current count for s.
func (c *Counters) Count(s Subsystem) uint8 {
	if s >= numSubsystems {
		return 0
	}
	return c.counts[s]
}

// Total sums all subsystems, saturating at 255 to fit one CAN byte.
func (c *Counters) Total() uint8 {
	var sum uint16
	for _, n := range c.counts {
		sum += uint16(n)
	}
	if sum > 0xFF {
		return 0xFF
	}
	return uint8(sum)
}

// Reset clears every counter.
func (c *Counters) Reset() {
	c.counts = [numSubsystems]uint8{}
}

// Counter is a view of one subsystem's counter, handed to the code that owns
// that subsystem.
type Counter struct {
	c   *Counters
	sub Subsystem
}

// For returns the counter for s.
func (c *Counters) For(s Subsystem) Counter {
	return Counter{c: c, sub: s}
}

// Inc counts one fault. A zero Counter discards it.
func (f Counter) Inc() {
	if f.c != nil {
		f.c.Inc(f.sub)
	}
}

// Count returns the current count.
func (f Counter) Count() uint8 {
	if f.c == nil {
		return 0
	}
	return f.c.Count(f.sub)
}
