package sensors

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/lsm6ds3tr"

	"github.com/danielljeon/nerve/diagnostics"
	"github.com/danielljeon/nerve/filter"
	"github.com/danielljeon/nerve/mathx"
)

const (
	StandardGravity = 9.80665 // m/s²

	microGToMS2    = StandardGravity / 1e6
	microDPSToRadS = math.Pi / 180 / 1e6

	// Attitude filter noise: the gyro is trusted, accelerometer angles are
	// noisy.
	gyroNoise  = 0.01
	accelNoise = 0.5
)

// Motion is a 6-axis IMU reporting in µg and µ°/s. *lsm6ds3tr.Device
// satisfies it.
type Motion interface {
	ReadAcceleration() (x, y, z int32, err error)
	ReadRotation() (x, y, z int32, err error)
}

// NewLSM6DS3TR configures the backup IMU at ±8 g and ±1000 °/s, 104 Hz.
func NewLSM6DS3TR(bus drivers.I2C) (*lsm6ds3tr.Device, error) {
	dev := lsm6ds3tr.New(bus)
	if !dev.Connected() {
		return nil, ErrNotConnected
	}
	err := dev.Configure(lsm6ds3tr.Configuration{
		AccelRange:      lsm6ds3tr.ACCEL_8G,
		AccelSampleRate: lsm6ds3tr.ACCEL_SR_104,
		GyroRange:       lsm6ds3tr.GYRO_1000DPS,
		GyroSampleRate:  lsm6ds3tr.GYRO_SR_104,
	})
	if err != nil {
		return nil, fmt.Errorf("lsm6ds3tr: %w", err)
	}
	return dev, nil
}

// BackupIMU turns raw backup IMU readings into bias-corrected SI vectors and
// a pitch and roll estimate. Pitch is positive nose down, roll positive
// right wing down.
type BackupIMU struct {
	dev    Motion
	faults diagnostics.Counter
	out    *Backup
	kf     *filter.Attitude

	accelBias r3.Vector
	gyroBias  r3.Vector
}

// NewBackupIMU returns the backup IMU task. dt is the task period in seconds.
func NewBackupIMU(dev Motion, dt float64, out *Backup, faults diagnostics.Counter) *BackupIMU {
	return &BackupIMU{
		dev:    dev,
		out:    out,
		faults: faults,
		kf:     filter.NewAttitude(dt, gyroNoise, accelNoise),
	}
}

func (b *BackupIMU) read() (accel, gyro r3.Vector, err error) {
	ax, ay, az, err := b.dev.ReadAcceleration()
	if err != nil {
		return
	}
	gx, gy, gz, err := b.dev.ReadRotation()
	if err != nil {
		return
	}
	accel = r3.Vector{X: float64(ax), Y: float64(ay), Z: float64(az)}.Mul(microGToMS2)
	gyro = r3.Vector{X: float64(gx), Y: float64(gy), Z: float64(gz)}.Mul(microDPSToRadS)
	return
}

// Calibrate averages samples readings taken while the vehicle sits still and
// level. The gyro bias is the mean rate; the accelerometer bias is the mean
// minus one g on Z, so gravity stays in later readings.
func (b *BackupIMU) Calibrate(samples int) error {
	if samples < 1 {
		samples = 1
	}
	var accelSum, gyroSum r3.Vector
	for i := 0; i < samples; i++ {
		a, g, err := b.read()
		if err != nil {
			return err
		}
		accelSum = accelSum.Add(a)
		gyroSum = gyroSum.Add(g)
	}
	n := float64(samples)
	b.accelBias = accelSum.Mul(1 / n).Sub(r3.Vector{Z: StandardGravity})
	b.gyroBias = gyroSum.Mul(1 / n)
	return nil
}

// Bias returns the calibrated accelerometer and gyro offsets.
func (b *BackupIMU) Bias() (accel, gyro r3.Vector) {
	return b.accelBias, b.gyroBias
}

// Run is the periodic backup IMU task.
func (b *BackupIMU) Run() {
	a, g, err := b.read()
	if err != nil {
		b.faults.Inc()
		return
	}
	a = a.Sub(b.accelBias)
	g = g.Sub(b.gyroBias)
	b.out.Accel = a
	b.out.Gyro = g

	b.kf.Predict(g.Y, g.X)
	if err := b.kf.Update(mathx.PitchFromAccel(a.X, a.Y, a.Z), mathx.RollFromAccel(a.Y, a.Z)); err != nil {
		b.faults.Inc()
		return
	}
	b.out.Pitch, b.out.Roll = b.kf.Angles()
}
