package sensorhub

import (
	"encoding/binary"

	"github.com/danielljeon/nerve/diagnostics"
)

// SHTP channels.
const (
	ChannelCommand    = 0
	ChannelExecutable = 1
	ChannelControl    = 2
	ChannelReports    = 3
	ChannelWake       = 4
	ChannelGyroRV     = 5
)

// ReportID identifies an SH2 sensor report.
type ReportID uint8

const (
	Accelerometer       ReportID = 0x01
	GyroscopeCalibrated ReportID = 0x02
	MagneticField       ReportID = 0x03
	LinearAcceleration  ReportID = 0x04
	RotationVector      ReportID = 0x05
	Gravity             ReportID = 0x06
	GameRotationVector  ReportID = 0x08

	reportSetFeature = 0xFD
	reportTimebase   = 0xFB
	reportTimeRebase = 0xFA
	setFeatureLen    = 17
)

// report lengths in bytes, id included
var reportLen = map[ReportID]int{
	Accelerometer:       10,
	GyroscopeCalibrated: 10,
	MagneticField:       10,
	LinearAcceleration:  10,
	RotationVector:      14,
	Gravity:             10,
	GameRotationVector:  12,
	reportTimebase:      5,
	reportTimeRebase:    5,
}

// fixed point Q for each report's values
var reportQ = map[ReportID]uint{
	Accelerometer:       8,
	GyroscopeCalibrated: 9,
	MagneticField:       4,
	LinearAcceleration:  8,
	RotationVector:      14,
	Gravity:             8,
	GameRotationVector:  14,
}

// Report is one decoded sensor sample. Vectors fill Values[0:3]; the
// rotation vectors fill i, j, k, real in Values[0:4]. Accuracy is the
// rotation vector's heading accuracy estimate in radians, zero otherwise.
type Report struct {
	ID          ReportID
	Status      uint8 // low two bits: accuracy class 0..3
	Values      [4]float64
	Accuracy    float64
	TimestampUs uint32
}

// Device speaks SH2 on top of a Hub.
type Device struct {
	hub    *Hub
	faults diagnostics.Counter

	seq   [6]uint8
	frame [MaxTransferIn]byte
	out   [HeaderLen + setFeatureLen]byte
}

// NewDevice wraps an open hub. Malformed report frames count against faults.
func NewDevice(hub *Hub, faults diagnostics.Counter) *Device {
	return &Device{hub: hub, faults: faults}
}

// EnableReport asks the hub to produce id every intervalUs microseconds.
// It returns ErrBusy while an earlier command is still queued.
func (d *Device) EnableReport(id ReportID, intervalUs uint32) error {
	p := d.out[HeaderLen:]
	clear(p)
	p[0] = reportSetFeature
	p[1] = byte(id)
	binary.LittleEndian.PutUint32(p[5:9], intervalUs)

	d.header(d.out[:], ChannelControl)
	n, err := d.hub.Write(d.out[:])
	if err != nil {
		d.seq[ChannelControl]--
		return err
	}
	if n == 0 {
		d.seq[ChannelControl]--
		return ErrBusy
	}
	return nil
}

func (d *Device) header(frame []byte, channel uint8) {
	binary.LittleEndian.PutUint16(frame[0:2], uint16(len(frame)))
	frame[2] = channel
	frame[3] = d.seq[channel]
	d.seq[channel]++
}

// Service drains every frame the hub has delivered and calls handle for each
// sensor report in them. It returns the number of reports handled.
func (d *Device) Service(handle func(Report)) int {
	handled := 0
	for {
		n, ts, err := d.hub.Read(d.frame[:])
		if err != nil {
			d.faults.Inc()
			continue
		}
		if n == 0 {
			return handled
		}
		if n < HeaderLen {
			d.faults.Inc()
			continue
		}
		ch := d.frame[2]
		if ch != ChannelReports && ch != ChannelWake {
			continue
		}
		c, err := DecodeReports(d.frame[HeaderLen:n], ts, handle)
		handled += c
		if err != nil {
			d.faults.Inc()
		}
	}
}

// DecodeReports walks the sensor reports in an input report payload. It stops
// at the first report id it does not know, since the rest of the payload
// cannot be framed without its length.
func DecodeReports(payload []byte, timestampUs uint32, handle func(Report)) (int, error) {
	handled := 0
	for len(payload) > 0 {
		id := ReportID(payload[0])
		size, ok := reportLen[id]
		if !ok {
			return handled, nil
		}
		if len(payload) < size {
			return handled, ErrShortReport
		}
		rec := payload[:size]
		payload = payload[size:]

		if id == reportTimebase || id == reportTimeRebase {
			continue
		}

		r := Report{ID: id, Status: rec[2] & 0x03, TimestampUs: timestampUs}
		q := reportQ[id]
		words := (size - 4) / 2
		if id == RotationVector {
			// last word is the accuracy estimate, Q12
			words--
			r.Accuracy = fixed(rec[size-2:], 12)
		}
		for i := 0; i < words && i < len(r.Values); i++ {
			r.Values[i] = fixed(rec[4+2*i:], q)
		}
		handle(r)
		handled++
	}
	return handled, nil
}

func fixed(b []byte, q uint) float64 {
	return float64(int16(binary.LittleEndian.Uint16(b))) / float64(int(1)<<q)
}
