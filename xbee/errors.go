package xbee

import "errors"

var (
	ErrPayloadTooLarge = errors.New("xbee: payload too large")
	ErrFrameTooLarge   = errors.New("xbee: frame too large")
	ErrShortFrame      = errors.New("xbee: short frame")
)
