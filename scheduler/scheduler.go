// Package scheduler runs periodic tasks off a free-running 32-bit counter.
//
// There is no preemption. Tick is called from the main loop as fast as it
// can go and every task that is due runs to completion before the next one
// is looked at, so a task that blocks stalls all of them.
package scheduler

import (
	"errors"
	"math"
)

// MaxTasks is the capacity of the task table.
const MaxTasks = 10

var (
	ErrTableFull  = errors.New("scheduler: task table full")
	ErrZeroPeriod = errors.New("scheduler: period must be non-zero")

	// ErrPeriodRange is returned for periods of 2^31 ticks or more, which the
	// wrap-safe deadline comparison cannot order.
	ErrPeriodRange = errors.New("scheduler: period too long")
)

// Clock is a free-running counter that wraps at 2^32.
type Clock interface {
	Now() uint32
}

// Task is one entry of the task table.
type Task struct {
	run    func()
	period uint32 // counter ticks
	next   uint32 // absolute, same domain as Clock.Now
}

// Scheduler holds a fixed table of tasks.
type Scheduler struct {
	clock      Clock
	ticksPerMs uint32
	tasks      [MaxTasks]Task
	n          int
}

// New returns a scheduler reading clock, which advances ticksPerMs every millisecond.
func New(clock Clock, ticksPerMs uint32) *Scheduler {
	if ticksPerMs == 0 {
		ticksPerMs = 1
	}
	return &Scheduler{clock: clock, ticksPerMs: ticksPerMs}
}

// Register adds fn to run every periodMs milliseconds. The first run is one
// period after registration.
func (s *Scheduler) Register(fn func(), periodMs uint32) error {
	if periodMs == 0 {
		return ErrZeroPeriod
	}
	if s.n >= MaxTasks {
		return ErrTableFull
	}
	ticks := uint64(periodMs) * uint64(s.ticksPerMs)
	if ticks > math.MaxInt32 {
		return ErrPeriodRange
	}
	period := uint32(ticks)
	s.tasks[s.n] = Task{
		run:    fn,
		period: period,
		next:   s.clock.Now() + period,
	}
	s.n++
	return nil
}

// MustRegister is Register for init code: a full table is a build mistake,
// not something to recover from.
func (s *Scheduler) MustRegister(fn func(), periodMs uint32) {
	if err := s.Register(fn, periodMs); err != nil {
		panic(err)
	}
}

// Len returns the number of registered tasks.
func (s *Scheduler) Len() int {
	return s.n
}

// Tick runs every task that is due, once each. The deadline moves by exactly
// one period per run so call jitter never accumulates into drift.
func (s *Scheduler) Tick() {
	now := s.clock.Now()
	for i := 0; i < s.n; i++ {
		t := &s.tasks[i]
		// signed difference survives the counter wrapping
		if int32(now-t.next) >= 0 {
			t.run()
			t.next += t.period
		}
	}
}
