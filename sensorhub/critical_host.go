//go:build !tinygo

package sensorhub

func maskInterrupts(fn func()) {
	fn()
}
