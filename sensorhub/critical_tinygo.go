//go:build tinygo

package sensorhub

import "runtime/interrupt"

func maskInterrupts(fn func()) {
	state := interrupt.Disable()
	fn()
	interrupt.Restore(state)
}
