package controls

import (
	"math"
	"time"

	"github.com/golang/geo/r3"

	"github.com/danielljeon/nerve/nmea"
	"github.com/danielljeon/nerve/sensors"
)

// EarthRadius is the mean radius used for the local tangent plane, in metres.
const EarthRadius = 6371000.0

// hubStaleUpdates is how many estimator updates may pass without a new hub
// report before attitude falls back to the backup IMU.
const hubStaleUpdates = 10

// Axes holds one value per rotation axis.
type Axes struct {
	Pitch float64
	Yaw   float64
	Roll  float64
}

// At returns the value for axis i (Pitch, Yaw, Roll).
func (a Axes) At(i int) float64 {
	switch i {
	case Pitch:
		return a.Pitch
	case Yaw:
		return a.Yaw
	case Roll:
		return a.Roll
	}
	return 0
}

// Measurements feed the cascade.
type Measurements struct {
	Position r3.Vector // m east, north, up from the first fix
	Velocity r3.Vector // m/s in the same frame
	Attitude Axes      // rad
	Rate     Axes      // rad/s
	OnBackup bool      // attitude comes from the backup IMU
}

// Estimator derives Measurements from the shared sensor state.
type Estimator struct {
	state *sensors.State

	home    nmea.Fix
	homeSet bool

	lastSentences uint32
	lastFixTime   time.Duration
	lastPosition  r3.Vector

	lastReports uint32
	stale       int

	m Measurements
}

func NewEstimator(state *sensors.State) *Estimator {
	return &Estimator{state: state, stale: hubStaleUpdates}
}

// Home returns the reference fix, once one has been seen.
func (e *Estimator) Home() (nmea.Fix, bool) {
	return e.home, e.homeSet
}

// Last returns the measurements from the most recent Update.
func (e *Estimator) Last() Measurements {
	return e.m
}

// Update refreshes the measurements.
func (e *Estimator) Update() Measurements {
	e.updateAttitude()
	e.updatePosition()
	return e.m
}

func (e *Estimator) updateAttitude() {
	imu := &e.state.IMU
	if imu.Reports != e.lastReports {
		e.lastReports = imu.Reports
		e.stale = 0
	} else if e.stale < hubStaleUpdates {
		e.stale++
	}

	if e.stale < hubStaleUpdates {
		euler := imu.Rotation.ToEuler()
		e.m.Attitude = Axes{Pitch: euler.Pitch, Yaw: euler.Yaw, Roll: euler.Roll}
		e.m.Rate = bodyRates(imu.Gyro)
		e.m.OnBackup = false
		return
	}

	// no heading from an accelerometer; hold the last yaw
	b := &e.state.Backup
	e.m.Attitude = Axes{Pitch: b.Pitch, Yaw: e.m.Attitude.Yaw, Roll: b.Roll}
	e.m.Rate = bodyRates(b.Gyro)
	e.m.OnBackup = true
}

// bodyRates maps gyro axes (x forward, y left, z up) to pitch, yaw and roll.
func bodyRates(g r3.Vector) Axes {
	return Axes{Pitch: g.Y, Yaw: g.Z, Roll: g.X}
}

func (e *Estimator) updatePosition() {
	fix := &e.state.GPS
	if !fix.Valid() || fix.Sentences == e.lastSentences {
		return
	}
	e.lastSentences = fix.Sentences

	if !e.homeSet {
		e.home = *fix
		e.homeSet = true
		e.lastFixTime = fix.Time
		return
	}

	pos := LocalPosition(e.home, *fix)
	if dt := fixInterval(e.lastFixTime, fix.Time); dt > 0 {
		e.m.Velocity = pos.Sub(e.lastPosition).Mul(1 / dt.Seconds())
		e.lastFixTime = fix.Time
		e.lastPosition = pos
	}
	e.m.Position = pos
}

// fixInterval is the time between two UTC times of day, across midnight.
func fixInterval(prev, cur time.Duration) time.Duration {
	dt := cur - prev
	if dt < 0 {
		dt += 24 * time.Hour
	}
	return dt
}

// LocalPosition projects fix onto the tangent plane at home: east, north and
// up in metres. The flat-earth projection is good to a few kilometres.
func LocalPosition(home, fix nmea.Fix) r3.Vector {
	lat0 := home.Latitude * math.Pi / 180
	dLat := (fix.Latitude - home.Latitude) * math.Pi / 180
	dLon := (fix.Longitude - home.Longitude) * math.Pi / 180
	return r3.Vector{
		X: dLon * math.Cos(lat0) * EarthRadius,
		Y: dLat * EarthRadius,
		Z: fix.Altitude - home.Altitude,
	}
}
