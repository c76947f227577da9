// Package telemetry forwards the shared vehicle state: CAN state messages, a
// rotating set of radio strings and a log sink.
package telemetry

import (
	"github.com/danielljeon/nerve/canbus"
	"github.com/danielljeon/nerve/diagnostics"
	"github.com/danielljeon/nerve/sensors"
)

// Mode codes carried in the NerveState message.
const (
	ModeDisarmed uint8 = iota
	ModeArmed
	ModeBackupAttitude
	ModeFault
)

// stateIDs are sent by CAN.Run, in this order.
var stateIDs = [...]uint32{
	canbus.IDState,
	canbus.IDBarometric,
	canbus.IDGps1,
	canbus.IDGps2,
	canbus.IDGps3,
	canbus.IDImu1,
	canbus.IDImu2,
	canbus.IDImu3,
	canbus.IDImu4,
	canbus.IDImu5,
	canbus.IDActuators,
}

// CAN transmits the state messages of the vehicle table.
type CAN struct {
	tx       canbus.Transmitter
	table    *canbus.Table
	state    *sensors.State
	counters *diagnostics.Counters
	mode     func() uint8

	sent uint32
}

// NewCAN returns the CAN telemetry task. mode reports the NerveState code and
// may be nil.
func NewCAN(tx canbus.Transmitter, table *canbus.Table, state *sensors.State, counters *diagnostics.Counters, mode func() uint8) *CAN {
	return &CAN{tx: tx, table: table, state: state, counters: counters, mode: mode}
}

// Sent is the number of frames handed to the transmitter.
func (c *CAN) Sent() uint32 { return c.sent }

// Run sends one burst of state messages. A transmit error counts a CAN fault
// and ends the burst; the next run starts over.
func (c *CAN) Run() {
	for _, id := range stateIDs {
		m := c.table.Lookup(id)
		if m == nil {
			continue
		}
		if err := canbus.Send(c.tx, m, c.values(id)...); err != nil {
			c.counters.Inc(diagnostics.CAN)
			return
		}
		c.sent++
	}
}

func (c *CAN) values(id uint32) []float64 {
	s := c.state
	switch id {
	case canbus.IDState:
		var mode uint8
		if c.mode != nil {
			mode = c.mode()
		}
		return []float64{float64(mode), float64(c.counters.Total())}
	case canbus.IDBarometric:
		return []float64{s.Baro.Pressure, s.Baro.Temperature, float64(c.counters.Count(diagnostics.Baro))}
	case canbus.IDGps1:
		return []float64{s.GPS.Latitude, s.GPS.Longitude}
	case canbus.IDGps2:
		return []float64{s.GPS.Altitude, s.GPS.GeoidSeparation}
	case canbus.IDGps3:
		return []float64{float64(s.GPS.FixQuality), float64(s.GPS.Satellites), s.GPS.HDOP}
	case canbus.IDImu1:
		q := s.IMU.Rotation
		return []float64{q.I, q.J, q.K, q.Real}
	case canbus.IDImu2:
		return []float64{s.IMU.Gyro.X, s.IMU.Gyro.Y, s.IMU.Gyro.Z}
	case canbus.IDImu3:
		return []float64{s.IMU.Accel.X, s.IMU.Accel.Y, s.IMU.Accel.Z}
	case canbus.IDImu4:
		return []float64{s.IMU.LinearAccel.X, s.IMU.LinearAccel.Y, s.IMU.LinearAccel.Z}
	case canbus.IDImu5:
		return []float64{s.IMU.Gravity.X, s.IMU.Gravity.Y, s.IMU.Gravity.Z}
	case canbus.IDActuators:
		return []float64{s.Actuators.Pitch, s.Actuators.Yaw, s.Actuators.Roll}
	}
	return nil
}
