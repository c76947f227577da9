package sensors

import "errors"

var ErrNotConnected = errors.New("sensors: device not responding")
