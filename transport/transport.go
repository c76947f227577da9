// Package transport holds the hardware contracts the protocol receivers are
// written against, so the same state machines run on the board and in tests.
package transport

import "io"

// Pin is a digital output. machine.Pin satisfies it.
type Pin interface {
	Set(high bool)
}

// Timer is a free-running microsecond counter that wraps at 2^32.
type Timer interface {
	Micros() uint32
}

// Elapsed returns the microseconds from start to now across a counter wrap.
func Elapsed(start, now uint32) uint32 {
	return now - start
}

// Delay busy-waits for us microseconds.
func Delay(t Timer, us uint32) {
	start := t.Micros()
	for Elapsed(start, t.Micros()) < us {
	}
}

// WaitFor polls cond until it returns true or timeoutUs microseconds pass.
// It reports whether cond became true. The wait is always bounded.
func WaitFor(t Timer, timeoutUs uint32, cond func() bool) bool {
	start := t.Micros()
	for {
		if cond() {
			return true
		}
		if Elapsed(start, t.Micros()) >= timeoutUs {
			return cond()
		}
	}
}

// SPI runs one full-duplex exchange. StartTransfer returns as soon as the
// exchange is queued; the owner of the engine calls the receiver's
// completion hook when it finishes.
type SPI interface {
	StartTransfer(tx, rx []byte) error
}

// DMABuffer models a circular UART DMA region that raises an interrupt at the
// half-way mark and at the end. The hardware (or a poller standing in for it)
// writes into Region; HalfComplete and Complete hand the finished half to sink.
type DMABuffer struct {
	Region []byte
	sink   io.Writer
}

// NewDMABuffer returns a buffer of size bytes feeding sink. size must be even.
func NewDMABuffer(size int, sink io.Writer) *DMABuffer {
	return &DMABuffer{Region: make([]byte, size), sink: sink}
}

// HalfComplete delivers the first half of the region.
func (d *DMABuffer) HalfComplete() {
	d.sink.Write(d.Region[:len(d.Region)/2])
}

// Complete delivers the second half of the region.
func (d *DMABuffer) Complete() {
	d.sink.Write(d.Region[len(d.Region)/2:])
}

// Fill copies p into the region the way the DMA engine would, firing the
// half and full callbacks as each boundary is crossed. pos is the engine's
// write position; Fill returns the new one.
func (d *DMABuffer) Fill(pos int, p []byte) int {
	half := len(d.Region) / 2
	for _, b := range p {
		d.Region[pos] = b
		pos++
		switch pos {
		case half:
			d.HalfComplete()
		case len(d.Region):
			d.Complete()
			pos = 0
		}
	}
	return pos
}
