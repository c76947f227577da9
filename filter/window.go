// Package filter implements a fixed-window moving average.
package filter

import "golang.org/x/exp/constraints"

// Number is anything the window can sum.
type Number interface {
	constraints.Integer | constraints.Float
}

// Window is a circular buffer of the last N samples plus their running sum.
// Push is O(1): the slot being overwritten is subtracted from the sum before
// the new sample is added.
//
// The sum is kept in T, so integer windows must leave headroom for N samples.
type Window[T Number] struct {
	slots  []T
	sum    T
	cursor int
	filled int
}

// NewWindow returns an empty window of n slots. It panics if n < 1.
func NewWindow[T Number](n int) *Window[T] {
	if n < 1 {
		panic("filter: window size must be at least 1")
	}
	return &Window[T]{slots: make([]T, n)}
}

// Push inserts v, evicting the oldest sample once the window is full.
func (w *Window[T]) Push(v T) {
	w.sum -= w.slots[w.cursor]
	w.slots[w.cursor] = v
	w.sum += v
	w.cursor++
	if w.cursor == len(w.slots) {
		w.cursor = 0
	}
	if w.filled < len(w.slots) {
		w.filled++
	}
}

// Average returns the mean of the samples held. Before the window fills it
// averages over what has been pushed so far; an empty window returns 0.
func (w *Window[T]) Average() T {
	if w.filled == 0 {
		return 0
	}
	return w.sum / T(w.filled)
}

// Sum returns the running sum.
func (w *Window[T]) Sum() T { return w.sum }

// Len returns how many slots hold samples.
func (w *Window[T]) Len() int { return w.filled }

// Cap returns the window size.
func (w *Window[T]) Cap() int { return len(w.slots) }

// Reset empties the window.
func (w *Window[T]) Reset() {
	clear(w.slots)
	w.sum = 0
	w.cursor = 0
	w.filled = 0
}
