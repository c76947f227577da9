package telemetry

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/golang/geo/r3"

	"github.com/danielljeon/nerve/canbus"
	"github.com/danielljeon/nerve/diagnostics"
	"github.com/danielljeon/nerve/mathx"
	"github.com/danielljeon/nerve/nmea"
	"github.com/danielljeon/nerve/sensors"
	"github.com/danielljeon/nerve/xbee"
)

type frame struct {
	id   uint32
	data []byte
}

type fakeTx struct {
	frames []frame
	failAt int // fail the n-th Tx, 1-based; 0 never
}

func (f *fakeTx) Tx(id uint32, dlc uint8, data []byte) error {
	if f.failAt > 0 && len(f.frames)+1 == f.failAt {
		return errors.New("tx timeout")
	}
	f.frames = append(f.frames, frame{id, append([]byte(nil), data[:dlc]...)})
	return nil
}

func testState() *sensors.State {
	return &sensors.State{
		Baro: sensors.Baro{Temperature: 21.5, Pressure: 101325},
		IMU: sensors.HubIMU{
			Accel:            r3.Vector{X: 0.5, Y: -0.25, Z: 9.81},
			Gyro:             r3.Vector{X: 0.01, Y: -0.02, Z: 0.03},
			Gravity:          r3.Vector{Z: 9.81},
			Rotation:         mathx.Quaternion{Real: 1},
			RotationAccuracy: math.Pi / 180,
		},
		GPS: nmea.Fix{
			Latitude: 48.1173, Longitude: -11.5166, Altitude: 545.4,
			FixQuality: 1, Satellites: 8, HDOP: 0.9, Sentences: 3,
		},
		Actuators: sensors.Actuators{Pitch: 0.25, Yaw: -0.5, Roll: 0},
	}
}

func TestCANRun(t *testing.T) {
	c := qt.New(t)
	var counters diagnostics.Counters
	table := canbus.MustNewTable(counters.For(diagnostics.CAN), canbus.NerveMessages(canbus.Handlers{})...)
	counters.Inc(diagnostics.Baro)
	counters.Inc(diagnostics.GPS)

	tx := &fakeTx{}
	task := NewCAN(tx, table, testState(), &counters, func() uint8 { return ModeArmed })
	task.Run()

	c.Assert(tx.frames, qt.HasLen, len(stateIDs))
	c.Assert(task.Sent(), qt.Equals, uint32(len(stateIDs)))
	for i, f := range tx.frames {
		c.Assert(f.id, qt.Equals, stateIDs[i])
	}

	decode := func(id uint32) []float64 {
		for _, f := range tx.frames {
			if f.id == id {
				return table.Lookup(id).Decode(f.data)
			}
		}
		t.Fatalf("no frame %#x", id)
		return nil
	}
	near := func(got []float64, want ...float64) {
		t.Helper()
		c.Assert(got, qt.HasLen, len(want))
		for i := range want {
			if math.Abs(got[i]-want[i]) > 1e-3 {
				t.Errorf("signal %d = %v, want %v", i, got[i], want[i])
			}
		}
	}
	near(decode(canbus.IDState), float64(ModeArmed), 2)
	near(decode(canbus.IDBarometric), 101325, 21.5, 1)
	near(decode(canbus.IDGps1), 48.1173, -11.5166)
	near(decode(canbus.IDGps3), 1, 8, 0.9)
	near(decode(canbus.IDImu3), 0.5, -0.25, 9.81)
	near(decode(canbus.IDActuators), 0.25, -0.5, 0)
}

func TestCANRunStopsOnError(t *testing.T) {
	var counters diagnostics.Counters
	table := canbus.MustNewTable(counters.For(diagnostics.CAN), canbus.NerveMessages(canbus.Handlers{})...)
	tx := &fakeTx{failAt: 3}
	task := NewCAN(tx, table, testState(), &counters, nil)
	task.Run()

	if len(tx.frames) != 2 {
		t.Fatalf("sent %d frames, want 2", len(tx.frames))
	}
	if got := counters.Count(diagnostics.CAN); got != 1 {
		t.Fatalf("CAN faults = %d, want 1", got)
	}
}

type fakeSender struct {
	payloads []string
	err      error
}

func (f *fakeSender) Send(dest64 uint64, dest16 uint16, payload []byte, critical bool) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, string(payload))
	return nil
}

func TestStringsRotation(t *testing.T) {
	var counters diagnostics.Counters
	counters.Inc(diagnostics.IMU)
	s := NewStrings(&fakeSender{}, xbee.BroadcastAddress64, xbee.UnknownAddress16, testState(), &counters)

	want := []string{
		"temp=21.500000,baro=101325.000000,f=0",
		"w=1.000000,i=0.000000,j=0.000000,k=0.000000,f=1",
		"accuracy_rad=0.017453,accuracy_deg=1.000000",
		"gyro_x=0.010000,gyro_y=-0.020000,gyro_z=0.030000",
		"accel_x=0.500000,accel_y=-0.250000,accel_z=9.810000",
		"lin_accel_x=0.000000,lin_accel_y=0.000000,lin_accel_z=0.000000",
		"gravity_x=0.000000,gravity_y=0.000000,gravity_z=9.810000",
		"altitude=545.400000,lat=48.117300_N,long=11.516600_W",
	}
	for round := 0; round < 2; round++ {
		for i, w := range want {
			if got := string(s.Next()); got != w {
				t.Errorf("round %d string %d = %q, want %q", round, i, got, w)
			}
		}
	}
}

func TestStringsUnknownHemisphere(t *testing.T) {
	var counters diagnostics.Counters
	s := NewStrings(&fakeSender{}, 0, 0, &sensors.State{}, &counters)
	for i := 0; i < numStrings-1; i++ {
		s.Next()
	}
	if got, want := string(s.Next()), "altitude=0.000000,lat=0.000000_0,long=0.000000_0"; got != want {
		t.Fatalf("Next = %q, want %q", got, want)
	}
}

type failingWriter struct{ n int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.n++
	return 0, errors.New("card removed")
}

func TestStringsRun(t *testing.T) {
	c := qt.New(t)
	var counters diagnostics.Counters
	radio := &fakeSender{}
	s := NewStrings(radio, 1, 2, testState(), &counters)

	var log bytes.Buffer
	s.SetSink(&log)
	s.Run()
	s.Run()
	c.Assert(radio.payloads, qt.HasLen, 2)
	lines := strings.Split(strings.TrimSuffix(log.String(), "\n"), "\n")
	c.Assert(lines, qt.DeepEquals, radio.payloads)

	bad := &failingWriter{}
	s.SetSink(bad)
	s.Run()
	s.Run()
	c.Assert(bad.n, qt.Equals, 1)
	c.Assert(s.Err(), qt.ErrorMatches, "card removed")

	radio.err = xbee.ErrPayloadTooLarge
	s.Run()
	c.Assert(counters.Count(diagnostics.Radio), qt.Equals, uint8(1))
}

func TestStringsFitOnePayload(t *testing.T) {
	st := testState()
	st.Baro.Pressure = -123456789.123
	st.IMU.LinearAccel = r3.Vector{X: -1e6, Y: -1e6, Z: -1e6}
	st.GPS.Altitude = -99999.99
	var counters diagnostics.Counters
	s := NewStrings(&fakeSender{}, 0, 0, st, &counters)
	for i := 0; i < numStrings; i++ {
		if n := len(s.Next()); n > xbee.MaxPayload {
			t.Fatalf("string %d is %d bytes", i, n)
		}
	}
}
