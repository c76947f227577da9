package sensorhub

import "errors"

var (
	ErrAlreadyOpen = errors.New("sensorhub: already open")
	ErrBadParam    = errors.New("sensorhub: bad parameter")
	ErrNoInterrupt = errors.New("sensorhub: no INTN after reset")
	ErrShortReport = errors.New("sensorhub: truncated report")
	ErrBusy        = errors.New("sensorhub: write pending")
)
