package telemetry

import (
	"io"
	"math"
	"strconv"

	"github.com/danielljeon/nerve/diagnostics"
	"github.com/danielljeon/nerve/sensors"
	"github.com/danielljeon/nerve/xbee"
)

// Sender transmits one radio payload. *xbee.Radio satisfies it.
type Sender interface {
	Send(dest64 uint64, dest16 uint16, payload []byte, critical bool) error
}

// numStrings is the length of the radio rotation.
const numStrings = 8

// Strings sends one telemetry string per run, cycling through the sensor
// groups, and copies each line to an optional log sink.
type Strings struct {
	radio    Sender
	dest64   uint64
	dest16   uint16
	state    *sensors.State
	counters *diagnostics.Counters

	sink    io.Writer
	sinkErr error

	index int
	buf   [xbee.MaxPayload]byte
}

func NewStrings(radio Sender, dest64 uint64, dest16 uint16, state *sensors.State, counters *diagnostics.Counters) *Strings {
	return &Strings{radio: radio, dest64: dest64, dest16: dest16, state: state, counters: counters}
}

// SetSink sets where lines are logged. A write error detaches the sink; Err
// reports it.
func (s *Strings) SetSink(w io.Writer) {
	s.sink = w
	s.sinkErr = nil
}

// Err returns the error that detached the log sink, if any.
func (s *Strings) Err() error { return s.sinkErr }

// Run is the periodic radio task.
func (s *Strings) Run() {
	line := s.Next()
	if err := s.radio.Send(s.dest64, s.dest16, line, false); err != nil {
		s.counters.Inc(diagnostics.Radio)
	}
	if s.sink == nil {
		return
	}
	if _, err := s.sink.Write(append(line, '\n')); err != nil {
		s.sink = nil
		s.sinkErr = err
	}
}

// Next formats the next string of the rotation and advances it. The slice is
// reused by the following call.
func (s *Strings) Next() []byte {
	st := s.state
	b := s.buf[:0]
	switch s.index {
	case 0:
		b = field(b, "temp", st.Baro.Temperature)
		b = field(b, "baro", st.Baro.Pressure)
		b = count(b, s.counters.Count(diagnostics.Baro))
	case 1:
		q := st.IMU.Rotation
		b = field(b, "w", q.Real)
		b = field(b, "i", q.I)
		b = field(b, "j", q.J)
		b = field(b, "k", q.K)
		b = count(b, s.counters.Count(diagnostics.IMU))
	case 2:
		b = field(b, "accuracy_rad", st.IMU.RotationAccuracy)
		b = field(b, "accuracy_deg", st.IMU.RotationAccuracy*180/math.Pi)
	case 3:
		b = field(b, "gyro_x", st.IMU.Gyro.X)
		b = field(b, "gyro_y", st.IMU.Gyro.Y)
		b = field(b, "gyro_z", st.IMU.Gyro.Z)
	case 4:
		b = field(b, "accel_x", st.IMU.Accel.X)
		b = field(b, "accel_y", st.IMU.Accel.Y)
		b = field(b, "accel_z", st.IMU.Accel.Z)
	case 5:
		b = field(b, "lin_accel_x", st.IMU.LinearAccel.X)
		b = field(b, "lin_accel_y", st.IMU.LinearAccel.Y)
		b = field(b, "lin_accel_z", st.IMU.LinearAccel.Z)
	case 6:
		b = field(b, "gravity_x", st.IMU.Gravity.X)
		b = field(b, "gravity_y", st.IMU.Gravity.Y)
		b = field(b, "gravity_z", st.IMU.Gravity.Z)
	case 7:
		b = field(b, "altitude", st.GPS.Altitude)
		b = hemisphere(b, "lat", st.GPS.Latitude, 'N', 'S', st.GPS.Sentences > 0)
		b = hemisphere(b, "long", st.GPS.Longitude, 'E', 'W', st.GPS.Sentences > 0)
	}
	s.index = (s.index + 1) % numStrings
	return b[:len(b)-1]
}

// field appends "name=value," with six decimals.
func field(b []byte, name string, v float64) []byte {
	b = append(b, name...)
	b = append(b, '=')
	b = strconv.AppendFloat(b, v, 'f', 6, 64)
	return append(b, ',')
}

func count(b []byte, n uint8) []byte {
	b = append(b, "f="...)
	b = strconv.AppendUint(b, uint64(n), 10)
	return append(b, ',')
}

// hemisphere appends "name=abs_H,"; H is '0' until a sentence has been seen.
func hemisphere(b []byte, name string, deg float64, pos, neg byte, known bool) []byte {
	h := pos
	if deg < 0 {
		h = neg
	}
	if !known {
		h = '0'
	}
	b = append(b, name...)
	b = append(b, '=')
	b = strconv.AppendFloat(b, math.Abs(deg), 'f', 6, 64)
	return append(b, '_', h, ',')
}
