// Package sensors holds the vehicle's shared sensor state and the runners that
// fill it from the barometer and the backup IMU.
//
// Each group in State has exactly one producer. Interrupt handlers and tasks
// never write the same group, so no locking is needed on the single core.
package sensors

import (
	"github.com/golang/geo/r3"

	"github.com/danielljeon/nerve/mathx"
	"github.com/danielljeon/nerve/nmea"
	"github.com/danielljeon/nerve/sensorhub"
)

// Baro is written by the barometer task.
type Baro struct {
	Temperature float64 // °C, window average
	Pressure    float64 // Pa, window average
	Altitude    float64 // m, pressure altitude against the standard atmosphere
	Samples     uint32
}

// HubIMU is written by the sensor hub service task.
type HubIMU struct {
	Accel       r3.Vector // m/s²
	Gyro        r3.Vector // rad/s
	LinearAccel r3.Vector // m/s², gravity removed
	Gravity     r3.Vector // m/s²

	Rotation         mathx.Quaternion
	RotationAccuracy float64 // rad
	GameRotation     mathx.Quaternion

	Reports      uint32
	LastReportUs uint32
}

// Backup is written by the backup IMU task.
type Backup struct {
	Accel r3.Vector // m/s², bias removed
	Gyro  r3.Vector // rad/s, bias removed
	Pitch float64   // rad, from the accelerometer
	Roll  float64   // rad, from the accelerometer
}

// Actuators is written by the inner control loop.
type Actuators struct {
	Pitch float64
	Yaw   float64
	Roll  float64
}

// State is everything the tasks share.
type State struct {
	Baro      Baro
	IMU       HubIMU
	Backup    Backup
	GPS       nmea.Fix // written by the GPS UART interrupt
	Actuators Actuators
}

func vector(v [4]float64) r3.Vector {
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}

func quaternion(v [4]float64) mathx.Quaternion {
	return mathx.Quaternion{I: v[0], J: v[1], K: v[2], Real: v[3]}
}

// ApplyHubReport stores one sensor hub report.
func (s *State) ApplyHubReport(r sensorhub.Report) {
	imu := &s.IMU
	switch r.ID {
	case sensorhub.Accelerometer:
		imu.Accel = vector(r.Values)
	case sensorhub.GyroscopeCalibrated:
		imu.Gyro = vector(r.Values)
	case sensorhub.LinearAcceleration:
		imu.LinearAccel = vector(r.Values)
	case sensorhub.Gravity:
		imu.Gravity = vector(r.Values)
	case sensorhub.RotationVector:
		imu.Rotation = quaternion(r.Values)
		imu.RotationAccuracy = r.Accuracy
	case sensorhub.GameRotationVector:
		imu.GameRotation = quaternion(r.Values)
	default:
		return
	}
	imu.Reports++
	imu.LastReportUs = r.TimestampUs
}
