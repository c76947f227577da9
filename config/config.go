// Package config holds the vehicle settings: task periods, controller gains,
// filter length and link addresses. Pins and baud rates are board constants
// and live with the firmware.
package config

import (
	"fmt"

	"github.com/danielljeon/nerve/controls"
	"github.com/danielljeon/nerve/pid"
	"github.com/danielljeon/nerve/scheduler"
)

// Periods are task periods in milliseconds.
type Periods struct {
	Baro      uint32
	BackupIMU uint32
	Radio     uint32
	CAN       uint32
	Outer     uint32
	Inner     uint32
	Status    uint32
}

// XBee addresses the telemetry strings.
type XBee struct {
	Dest64 uint64
	Dest16 uint16
}

type Settings struct {
	Periods    Periods
	Gains      controls.Gains
	BaroWindow int
	XBee       XBee
	CANKbps    uint32
	LEDCount   int

	// CalibrationSamples is how many backup IMU readings are averaged at
	// start up.
	CalibrationSamples int
}

// MaxBaroWindow bounds the barometer moving average.
const MaxBaroWindow = 64

var canRates = []uint32{125, 250, 500, 1000}

// Default returns the vehicle defaults.
func Default() Settings {
	s := Settings{
		Periods: Periods{
			Baro:      10,
			BackupIMU: 10,
			Radio:     50,
			CAN:       100,
			Outer:     20,
			Inner:     5,
			Status:    10,
		},
		BaroWindow: 8,
		XBee: XBee{
			Dest64: 0x0123456789ABCDEF,
			Dest16: 0xFFFE,
		},
		CANKbps:            500,
		LEDCount:           2,
		CalibrationSamples: 200,
	}

	outer := seconds(s.Periods.Outer)
	inner := seconds(s.Periods.Inner)
	for i := 0; i < 3; i++ {
		s.Gains.Position[i] = gains(0.8, 0, 0, outer, 5)      // m -> m/s
		s.Gains.Velocity[i] = gains(0.2, 0.05, 0, outer, 0.5) // m/s -> rad
		s.Gains.Attitude[i] = gains(4, 0, 0, inner, 3)        // rad -> rad/s
		s.Gains.Rate[i] = gains(0.5, 0.1, 0.02, inner, 1)     // rad/s -> actuator
	}
	return s
}

func seconds(ms uint32) float64 { return float64(ms) / 1000 }

// gains builds a symmetric controller whose integrator may use half the
// output range.
func gains(kp, ki, kd, t, limit float64) pid.Config {
	return pid.Config{
		Kp:     kp,
		Ki:     ki,
		Kd:     kd,
		Tau:    2 * t,
		OutMin: -limit,
		OutMax: limit,
		IntMin: -limit / 2,
		IntMax: limit / 2,
		T:      t,
	}
}

// Validate returns an error describing the first invalid field.
func (s *Settings) Validate() error {
	periods := []struct {
		name string
		ms   uint32
	}{
		{"baro", s.Periods.Baro},
		{"backup imu", s.Periods.BackupIMU},
		{"radio", s.Periods.Radio},
		{"can", s.Periods.CAN},
		{"outer", s.Periods.Outer},
		{"inner", s.Periods.Inner},
		{"status", s.Periods.Status},
	}
	for _, p := range periods {
		if p.ms == 0 {
			return fmt.Errorf("config: %s period is zero", p.name)
		}
	}
	if len(periods) > scheduler.MaxTasks {
		return fmt.Errorf("config: %d periodic tasks, scheduler holds %d", len(periods), scheduler.MaxTasks)
	}
	if s.Periods.Inner > s.Periods.Outer {
		return fmt.Errorf("config: inner loop period %d ms is slower than outer %d ms", s.Periods.Inner, s.Periods.Outer)
	}

	stages := []struct {
		name   string
		period uint32
		cfg    *[3]pid.Config
	}{
		{"position", s.Periods.Outer, &s.Gains.Position},
		{"velocity", s.Periods.Outer, &s.Gains.Velocity},
		{"attitude", s.Periods.Inner, &s.Gains.Attitude},
		{"rate", s.Periods.Inner, &s.Gains.Rate},
	}
	for _, st := range stages {
		for axis, c := range st.cfg {
			if err := checkPID(c, seconds(st.period)); err != nil {
				return fmt.Errorf("config: %s gains, axis %d: %w", st.name, axis, err)
			}
		}
	}

	if s.BaroWindow < 1 || s.BaroWindow > MaxBaroWindow {
		return fmt.Errorf("config: baro window %d outside 1..%d", s.BaroWindow, MaxBaroWindow)
	}
	if !validRate(s.CANKbps) {
		return fmt.Errorf("config: unsupported CAN bitrate %d kbps", s.CANKbps)
	}
	if s.LEDCount < 0 {
		return fmt.Errorf("config: negative LED count %d", s.LEDCount)
	}
	if s.CalibrationSamples < 1 {
		return fmt.Errorf("config: calibration needs at least one sample, have %d", s.CalibrationSamples)
	}
	return nil
}

func checkPID(c pid.Config, period float64) error {
	switch {
	case c.T <= 0:
		return fmt.Errorf("sample period %v s", c.T)
	case c.T != period:
		return fmt.Errorf("sample period %v s does not match the task period %v s", c.T, period)
	case c.Tau < 0:
		return fmt.Errorf("negative derivative time constant %v", c.Tau)
	case c.OutMin >= c.OutMax:
		return fmt.Errorf("output limits [%v, %v]", c.OutMin, c.OutMax)
	case c.IntMin > c.IntMax:
		return fmt.Errorf("integrator limits [%v, %v]", c.IntMin, c.IntMax)
	}
	return nil
}

func validRate(kbps uint32) bool {
	for _, r := range canRates {
		if r == kbps {
			return true
		}
	}
	return false
}
