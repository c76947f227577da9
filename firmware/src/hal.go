//go:build tinygo

package main

import (
	"machine"
	"time"

	"tinygo.org/x/drivers/mcp2515"

	"github.com/danielljeon/nerve/transport"
)

var boot = time.Now()

// microClock counts microseconds since boot and wraps at 2^32. It is the
// scheduler clock and the sensor hub timer.
type microClock struct{}

func (microClock) Now() uint32    { return uint32(time.Since(boot) / time.Microsecond) }
func (microClock) Micros() uint32 { return uint32(time.Since(boot) / time.Microsecond) }

func millis() uint32 { return uint32(time.Since(boot) / time.Millisecond) }

// uartDMA drains a UART ring buffer into a receiver's DMA region, firing the
// half and full callbacks as the hardware would.
type uartDMA struct {
	uart  *machine.UART
	dma   *transport.DMABuffer
	pos   int
	chunk [64]byte
}

func (u *uartDMA) Poll() {
	for u.uart.Buffered() > 0 {
		n, err := u.uart.Read(u.chunk[:])
		if err != nil || n == 0 {
			return
		}
		u.pos = u.dma.Fill(u.pos, u.chunk[:n])
	}
}

// canDevice adapts the MCP2515 receive side to canbus.Receiver.
type canDevice struct {
	*mcp2515.Device
}

func (d canDevice) Next() (uint32, uint8, []byte, error) {
	msg, err := d.Rx()
	if err != nil {
		return 0, 0, nil, err
	}
	return msg.ID, msg.Dlc, msg.Data, nil
}

func canSpeed(kbps uint32) byte {
	switch kbps {
	case 125:
		return mcp2515.CAN125kBps
	case 250:
		return mcp2515.CAN250kBps
	case 1000:
		return mcp2515.CAN1000kBps
	}
	return mcp2515.CAN500kBps
}

func configureOutput(pins ...machine.Pin) {
	for _, p := range pins {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	}
}
