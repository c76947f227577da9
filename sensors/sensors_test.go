package sensors

import (
	"errors"
	"math"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/golang/geo/r3"
	"tinygo.org/x/drivers/bmp388"
	"tinygo.org/x/drivers/lsm6ds3tr"
	"tinygo.org/x/drivers/tester"

	"github.com/danielljeon/nerve/diagnostics"
	"github.com/danielljeon/nerve/sensorhub"
)

// bmp388 calibration with only t2 = 2^14 set makes the compensated
// temperature register read back as centidegrees * 16384 / 25.
func newFakeBMP388(t *testing.T) (*BMP388, *tester.I2CDevice8) {
	bus := tester.NewI2CBus(t)
	dev := bus.NewDevice(bmp388.Address)
	dev.Registers[bmp388.RegChipId] = bmp388.ChipId
	dev.Registers[bmp388.RegCali+3] = 0x40

	// 25.00 °C
	raw := 2500 * 16384 / 25
	dev.Registers[bmp388.RegTemp] = byte(raw)
	dev.Registers[bmp388.RegTemp+1] = byte(raw >> 8)
	dev.Registers[bmp388.RegTemp+2] = byte(raw >> 16)
	return NewBMP388(bus), dev
}

func TestBMP388(t *testing.T) {
	c := qt.New(t)
	b, dev := newFakeBMP388(t)
	c.Assert(b.Configure(), qt.IsNil)

	var frames [4]BaroFrame
	n, err := b.ReadFrames(frames[:])
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 1)
	c.Assert(frames[0].Temperature, qt.Equals, 25.0)

	n, err = b.ReadFrames(nil)
	c.Assert(n, qt.Equals, 0)
	c.Assert(err, qt.IsNil)

	dev.Registers[bmp388.RegChipId] = 0x60
	_, err = b.ReadFrames(frames[:])
	c.Assert(err, qt.Not(qt.IsNil))
	c.Assert(b.Configure(), qt.Equals, ErrNotConnected)
}

type fakeFIFO struct {
	batches [][]BaroFrame
	err     error
}

func (f *fakeFIFO) ReadFrames(dst []BaroFrame) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if len(f.batches) == 0 {
		return 0, nil
	}
	n := copy(dst, f.batches[0])
	f.batches = f.batches[1:]
	return n, nil
}

func TestBarometerWindows(t *testing.T) {
	c := qt.New(t)
	var out Baro
	var counters diagnostics.Counters
	fifo := &fakeFIFO{batches: [][]BaroFrame{
		{{20, 100000}, {22, 100200}},
		{},
		{{24, 100400}, {26, 100600}, {28, 100800}},
	}}
	b := NewBarometer(fifo, 4, &out, counters.For(diagnostics.Baro))

	b.Run()
	c.Assert(out.Temperature, qt.Equals, 21.0)
	c.Assert(out.Pressure, qt.Equals, 100100.0)
	c.Assert(out.Samples, qt.Equals, uint32(2))

	// an empty read changes nothing
	b.Run()
	c.Assert(out.Samples, qt.Equals, uint32(2))

	// window of 4 keeps 22..28
	b.Run()
	c.Assert(out.Temperature, qt.Equals, 25.0)
	c.Assert(out.Pressure, qt.Equals, 100500.0)
	c.Assert(out.Samples, qt.Equals, uint32(5))
	c.Assert(out.Altitude > 0 && out.Altitude < 100, qt.IsTrue, qt.Commentf("altitude %v", out.Altitude))

	fifo.err = errors.New("i2c nack")
	b.Run()
	c.Assert(counters.Count(diagnostics.Baro), qt.Equals, uint8(1))
	c.Assert(out.Temperature, qt.Equals, 25.0)
}

func TestPressureAltitude(t *testing.T) {
	tests := []struct {
		pa   float64
		want float64
	}{
		{SeaLevelPressure, 0},
		{89874.6, 1000},
		{0, 0},
	}
	for _, tt := range tests {
		if got := PressureAltitude(tt.pa); math.Abs(got-tt.want) > 1 {
			t.Errorf("PressureAltitude(%v) = %v, want %v", tt.pa, got, tt.want)
		}
	}
}

func putAxis(regs []uint8, reg uint8, x, y, z int16) {
	for i, v := range []int16{x, y, z} {
		regs[int(reg)+2*i] = uint8(v)
		regs[int(reg)+2*i+1] = uint8(uint16(v) >> 8)
	}
}

const (
	outxLG  = 0x22
	outxLXL = 0x28
)

func TestBackupIMU(t *testing.T) {
	c := qt.New(t)
	bus := tester.NewI2CBus(t)
	dev := bus.NewDevice(lsm6ds3tr.Address)
	dev.Registers[0x0F] = 0x6A

	lsm, err := NewLSM6DS3TR(bus)
	c.Assert(err, qt.IsNil)

	// level and still, with a small gyro offset
	putAxis(dev.Registers[:], outxLXL, 0, 0, 4096)
	putAxis(dev.Registers[:], outxLG, 100, 0, -100)

	var out Backup
	var counters diagnostics.Counters
	imu := NewBackupIMU(lsm, 0.01, &out, counters.For(diagnostics.IMU))
	c.Assert(imu.Calibrate(10), qt.IsNil)

	_, gyroBias := imu.Bias()
	// 100 LSB at ±1000 °/s is 3.5 °/s
	c.Assert(math.Abs(gyroBias.X-3.5*math.Pi/180) < 1e-9, qt.IsTrue, qt.Commentf("bias %v", gyroBias))

	imu.Run()
	c.Assert(out.Gyro.Norm() < 1e-9, qt.IsTrue, qt.Commentf("gyro %v", out.Gyro))
	c.Assert(math.Abs(out.Accel.Z-StandardGravity) < 1e-9, qt.IsTrue, qt.Commentf("accel %v", out.Accel))
	c.Assert(math.Abs(out.Pitch) < 1e-9, qt.IsTrue)
	c.Assert(math.Abs(out.Roll) < 1e-9, qt.IsTrue)

	// tilted 45 degrees in pitch; the filter settles onto the accelerometer
	putAxis(dev.Registers[:], outxLXL, -4096, 0, 4096)
	imu.Run()
	c.Assert(out.Pitch > 0 && out.Pitch < math.Pi/4, qt.IsTrue, qt.Commentf("pitch %v", out.Pitch))
	for i := 0; i < 200; i++ {
		imu.Run()
	}
	c.Assert(math.Abs(out.Pitch-math.Pi/4) < 1e-3, qt.IsTrue, qt.Commentf("pitch %v", out.Pitch))

	dev.Err = errors.New("bus error")
	imu.Run()
	c.Assert(counters.Count(diagnostics.IMU), qt.Equals, uint8(1))
}

func TestBackupIMUMissing(t *testing.T) {
	bus := tester.NewI2CBus(t)
	bus.NewDevice(lsm6ds3tr.Address)
	if _, err := NewLSM6DS3TR(bus); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("NewLSM6DS3TR = %v, want ErrNotConnected", err)
	}
}

func TestApplyHubReport(t *testing.T) {
	c := qt.New(t)
	var s State
	s.ApplyHubReport(sensorhub.Report{ID: sensorhub.Accelerometer, Values: [4]float64{1, 2, 3}, TimestampUs: 10})
	s.ApplyHubReport(sensorhub.Report{ID: sensorhub.RotationVector, Values: [4]float64{0, 0, 0, 1}, Accuracy: 0.1, TimestampUs: 20})
	s.ApplyHubReport(sensorhub.Report{ID: sensorhub.MagneticField, Values: [4]float64{9, 9, 9}, TimestampUs: 30})

	c.Assert(s.IMU.Accel, qt.Equals, r3.Vector{X: 1, Y: 2, Z: 3})
	c.Assert(s.IMU.Rotation.Real, qt.Equals, 1.0)
	c.Assert(s.IMU.RotationAccuracy, qt.Equals, 0.1)
	c.Assert(s.IMU.Reports, qt.Equals, uint32(2))
	c.Assert(s.IMU.LastReportUs, qt.Equals, uint32(20))
}
