package nmea

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const KnotsToMetresPerSecond = 0.514444

// Fix is the latest GPS solution. Fields keep their last good value; a
// sentence that fails halfway leaves the fields it reached updated.
type Fix struct {
	Time            time.Duration // since UTC midnight
	Latitude        float64       // degrees, south negative
	Longitude       float64       // degrees, west negative
	FixQuality      uint8         // 0 none, 1 GPS, 2 DGPS...
	Satellites      uint8
	HDOP            float64
	Altitude        float64 // metres above mean sea level
	GeoidSeparation float64 // metres
	GroundSpeed     float64 // m/s, from RMC
	Course          float64 // degrees true, from RMC

	// Sentences counts sentences applied without error.
	Sentences uint32
}

// Valid reports whether the receiver claims a position fix.
func (f *Fix) Valid() bool {
	return f.FixQuality > 0
}

// parseGGA applies the GGA fields of body (talker through the last field,
// no '$' or checksum). Empty fields are skipped. On the first bad field it
// stops and returns the error.
func (f *Fix) parseGGA(body string) error {
	fields := strings.Split(body, ",")[1:]
	field := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}

	if v := field(0); v != "" {
		t, err := parseTime(v)
		if err != nil {
			return err
		}
		f.Time = t
	}
	if v := field(1); v != "" {
		lat, err := parseCoordinate(v, field(2), 'N', 'S')
		if err != nil {
			return err
		}
		f.Latitude = lat
	}
	if v := field(3); v != "" {
		lon, err := parseCoordinate(v, field(4), 'E', 'W')
		if err != nil {
			return err
		}
		f.Longitude = lon
	}
	if v := field(5); v != "" {
		q, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return err
		}
		f.FixQuality = uint8(q)
	}
	if v := field(6); v != "" {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return err
		}
		f.Satellites = uint8(n)
	}
	if v := field(7); v != "" {
		h, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		f.HDOP = h
	}
	if v := field(8); v != "" {
		a, err := parseMetres(v, field(9))
		if err != nil {
			return err
		}
		f.Altitude = a
	}
	if v := field(10); v != "" {
		g, err := parseMetres(v, field(11))
		if err != nil {
			return err
		}
		f.GeoidSeparation = g
	}
	return nil
}

// parseTime reads hhmmss with optional fractional seconds.
func parseTime(v string) (time.Duration, error) {
	if len(v) < 6 {
		return 0, ErrBadField
	}
	h, err := strconv.ParseUint(v[0:2], 10, 8)
	if err != nil || h > 23 {
		return 0, ErrBadField
	}
	m, err := strconv.ParseUint(v[2:4], 10, 8)
	if err != nil || m > 59 {
		return 0, ErrBadField
	}
	s, err := strconv.ParseFloat(v[4:], 64)
	if err != nil || s < 0 || s >= 61 {
		return 0, ErrBadField
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s*float64(time.Second)), nil
}

// parseCoordinate converts DDMM.MMMM (or DDDMM.MMMM) and its hemisphere
// letter to signed decimal degrees.
func parseCoordinate(v, hemi string, pos, neg byte) (float64, error) {
	raw, err := strconv.ParseFloat(v, 64)
	if err != nil || raw < 0 {
		return 0, ErrBadField
	}
	deg := math.Floor(raw / 100)
	minutes := raw - deg*100
	if minutes >= 60 {
		return 0, ErrBadField
	}
	d := deg + minutes/60
	switch {
	case len(hemi) != 1:
		return 0, ErrBadField
	case hemi[0] == neg:
		d = -d
	case hemi[0] != pos:
		return 0, ErrBadField
	}
	return d, nil
}

func parseMetres(v, unit string) (float64, error) {
	if unit != "" && unit != "M" {
		return 0, ErrBadField
	}
	return strconv.ParseFloat(v, 64)
}
