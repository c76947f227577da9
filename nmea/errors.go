package nmea

import "errors"

var ErrBadField = errors.New("nmea: bad field")
