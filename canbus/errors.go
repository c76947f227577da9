package canbus

import "errors"

var (
	ErrSignalCount   = errors.New("canbus: wrong number of signal values")
	ErrSignalLength  = errors.New("canbus: signal length must be 1..64")
	ErrSignalRange   = errors.New("canbus: signal does not fit in payload")
	ErrSignalOverlap = errors.New("canbus: overlapping signals")
	ErrZeroScale     = errors.New("canbus: signal scale is zero")
	ErrBadDLC        = errors.New("canbus: dlc larger than 8")
	ErrIDMask        = errors.New("canbus: id not covered by mask")
	ErrUnknownID     = errors.New("canbus: no message with that id")
)
