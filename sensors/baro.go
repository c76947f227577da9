package sensors

import (
	"fmt"
	"math"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/bmp388"

	"github.com/danielljeon/nerve/diagnostics"
	"github.com/danielljeon/nerve/filter"
)

// SeaLevelPressure is the standard atmosphere reference in Pa.
const SeaLevelPressure = 101325.0

// BaroFrame is one compensated barometer sample.
type BaroFrame struct {
	Temperature float64 // °C
	Pressure    float64 // Pa
}

// FIFO is a barometer that buffers samples between reads. ReadFrames fills dst
// with as many buffered frames as fit and returns how many it wrote.
type FIFO interface {
	ReadFrames(dst []BaroFrame) (int, error)
}

// BMP388 adapts the tinygo bmp388 driver, which has no FIFO access, to FIFO:
// every call yields the current reading as a single frame.
type BMP388 struct {
	dev bmp388.Device
}

func NewBMP388(bus drivers.I2C) *BMP388 {
	return &BMP388{dev: bmp388.New(bus)}
}

// Configure checks the chip id and starts continuous conversion.
func (b *BMP388) Configure() error {
	if !b.dev.Connected() {
		return ErrNotConnected
	}
	err := b.dev.Configure(bmp388.Config{
		Pressure:    bmp388.Sampling8X,
		Temperature: bmp388.Sampling1X,
		Mode:        bmp388.Normal,
		ODR:         bmp388.Odr50,
		IIR:         bmp388.Coeff3,
	})
	if err != nil {
		return fmt.Errorf("bmp388: %w", err)
	}
	return nil
}

func (b *BMP388) ReadFrames(dst []BaroFrame) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	t, err := b.dev.ReadTemperature()
	if err != nil {
		return 0, err
	}
	p, err := b.dev.ReadPressure()
	if err != nil {
		return 0, err
	}
	dst[0] = BaroFrame{
		Temperature: float64(t) / 100,
		Pressure:    float64(p) / 100,
	}
	return 1, nil
}

// Barometer drains a FIFO into temperature and pressure windows and publishes
// their averages.
type Barometer struct {
	fifo   FIFO
	faults diagnostics.Counter
	out    *Baro

	temperature *filter.Window[float64]
	pressure    *filter.Window[float64]
	frames      [8]BaroFrame
}

// NewBarometer averages over window samples and writes into out.
func NewBarometer(fifo FIFO, window int, out *Baro, faults diagnostics.Counter) *Barometer {
	return &Barometer{
		fifo:        fifo,
		faults:      faults,
		out:         out,
		temperature: filter.NewWindow[float64](window),
		pressure:    filter.NewWindow[float64](window),
	}
}

// Run is the periodic barometer task.
func (b *Barometer) Run() {
	n, err := b.fifo.ReadFrames(b.frames[:])
	if err != nil {
		b.faults.Inc()
		return
	}
	if n == 0 {
		return
	}
	for _, f := range b.frames[:n] {
		b.temperature.Push(f.Temperature)
		b.pressure.Push(f.Pressure)
	}
	b.out.Temperature = b.temperature.Average()
	b.out.Pressure = b.pressure.Average()
	b.out.Altitude = PressureAltitude(b.out.Pressure)
	b.out.Samples += uint32(n)
}

// PressureAltitude converts pressure in Pa to metres with the international
// barometric formula.
func PressureAltitude(pa float64) float64 {
	if pa <= 0 {
		return 0
	}
	return 44330 * (1 - math.Pow(pa/SeaLevelPressure, 1/5.255))
}
