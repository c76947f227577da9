// Package sensorhub moves SHTP frames between the host and a BNO08x style
// sensor hub over SPI, and decodes the handful of SH2 reports the vehicle uses.
//
// The SPI side is an interrupt driven state machine. The hub pulls INTN low
// when it wants to talk (or is ready to listen after WAKE); OnInterrupt starts
// a transfer, and TransferComplete either chains the next one or returns to
// idle. Only one SPI exchange is ever in flight.
package sensorhub

import (
	"github.com/danielljeon/nerve/transport"
)

const (
	// MaxTransferIn is the largest frame the receive buffer holds.
	MaxTransferIn = 1024
	// MaxTransferOut is the largest frame Write accepts.
	MaxTransferOut = 128

	// HeaderLen bytes are read first to learn the frame length.
	HeaderLen = 4

	ResetDelayUs = 10000
	StartDelayUs = 2000000

	continuationBit = 0x8000
)

// State of the SPI state machine.
type State uint8

const (
	StateInit State = iota
	StateDummy
	StateIdle
	StateReadHeader
	StateReadBody
	StateWrite
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateDummy:
		return "DUMMY"
	case StateIdle:
		return "IDLE"
	case StateReadHeader:
		return "RD_HDR"
	case StateReadBody:
		return "RD_BODY"
	case StateWrite:
		return "WRITE"
	}
	return "?"
}

// Pins wired to the hub. PS1 may be nil when it is strapped on the board.
type Pins struct {
	CS    transport.Pin // active low
	Wake  transport.Pin // PS0/WAKE, active low
	PS1   transport.Pin
	Reset transport.Pin // RSTN, active low
}

// Hub is the SHTP transport HAL: Open, Close, Read, Write and TimeUs.
//
// OnInterrupt and TransferComplete run in interrupt context; everything else
// runs in task context. rxLen and txLen are the handoff flags between the
// two and are only ever cleared by the side that consumes the data.
type Hub struct {
	spi   transport.SPI
	pins  Pins
	timer transport.Timer

	state   State
	open    bool
	inReset bool

	// set by INTN, cleared when a transfer starts
	intnSeen    bool
	rxTimestamp uint32

	rx    [MaxTransferIn]byte
	rxLen int

	tx    [MaxTransferOut]byte
	txLen int

	zeros [MaxTransferIn]byte
	dummy [1]byte
	sink  [1]byte
}

// New returns a closed hub.
func New(spi transport.SPI, pins Pins, timer transport.Timer) *Hub {
	return &Hub{spi: spi, pins: pins, timer: timer, dummy: [1]byte{0xAA}}
}

// State returns the current state machine state.
func (h *Hub) State() State { return h.state }

// Open resets the hub and waits, bounded, for its first INTN.
func (h *Hub) Open() error {
	if h.open {
		return ErrAlreadyOpen
	}
	h.open = true

	h.pins.Reset.Set(false)
	h.pins.CS.Set(true)

	h.rxLen = 0
	h.txLen = 0
	h.intnSeen = false
	h.inReset = true

	// The first exchange after the bus is configured clocks garbage; throw
	// one byte away before talking to the hub.
	h.state = StateDummy
	if err := h.spi.StartTransfer(h.dummy[:], h.sink[:]); err != nil {
		h.state = StateIdle
		return err
	}
	transport.WaitFor(h.timer, ResetDelayUs, func() bool { return h.state != StateDummy })
	h.state = StateIdle

	transport.Delay(h.timer, ResetDelayUs)

	// PS0=1 and PS1=1 boot the hub in SPI mode.
	h.pins.Wake.Set(true)
	if h.pins.PS1 != nil {
		h.pins.PS1.Set(true)
	}
	h.pins.Reset.Set(true)

	if !transport.WaitFor(h.timer, StartDelayUs, func() bool { return !h.inReset }) {
		return ErrNoInterrupt
	}
	return nil
}

// Close holds the hub in reset and stops servicing interrupts.
func (h *Hub) Close() {
	h.state = StateInit
	h.pins.Reset.Set(false)
	h.pins.CS.Set(true)
	h.open = false
}

// TimeUs returns the HAL clock.
func (h *Hub) TimeUs() uint32 {
	return h.timer.Micros()
}

// OnInterrupt is the INTN falling-edge handler.
func (h *Hub) OnInterrupt() {
	h.rxTimestamp = h.timer.Micros()
	h.inReset = false
	h.intnSeen = true
	h.activate()
}

// critical runs task-context code that shares state with OnInterrupt and
// TransferComplete with interrupts masked.
var critical = maskInterrupts

// activate starts a transfer if the bus is idle, the hub asked for one and
// the previous frame has been collected. A pending write goes first.
// Calling it while a transfer is running does nothing.
func (h *Hub) activate() {
	if h.state != StateIdle || h.rxLen != 0 || !h.intnSeen {
		return
	}
	h.intnSeen = false
	h.pins.CS.Set(false)

	if h.txLen > 0 {
		h.state = StateWrite
		h.start(h.tx[:h.txLen], h.rx[:h.txLen])
		h.pins.Wake.Set(true)
		return
	}
	h.state = StateReadHeader
	h.start(h.zeros[:HeaderLen], h.rx[:HeaderLen])
}

func (h *Hub) start(tx, rx []byte) {
	if err := h.spi.StartTransfer(tx, rx); err != nil {
		// the engine refused; drop back to idle and wait for the next INTN
		h.pins.CS.Set(true)
		h.state = StateIdle
	}
}

// TransferComplete is the SPI completion handler.
func (h *Hub) TransferComplete() {
	if !h.open {
		return
	}

	frameLen := int(uint16(h.rx[0])|uint16(h.rx[1])<<8) &^ continuationBit
	if frameLen > len(h.rx) {
		frameLen = len(h.rx)
	}

	switch h.state {
	case StateDummy:
		h.state = StateIdle

	case StateReadHeader:
		if frameLen > HeaderLen {
			h.state = StateReadBody
			h.start(h.zeros[:frameLen-HeaderLen], h.rx[HeaderLen:frameLen])
			return
		}
		h.pins.CS.Set(true)
		h.rxLen = 0
		h.state = StateIdle
		h.activate()

	case StateReadBody:
		h.pins.CS.Set(true)
		h.rxLen = frameLen
		h.state = StateIdle
		h.activate()

	case StateWrite:
		h.pins.CS.Set(true)
		// the hub talked back during our write; keep what fits
		h.rxLen = min(h.txLen, frameLen)
		h.txLen = 0
		h.state = StateIdle
		h.activate()
	}
}

// Read copies the pending frame into buf and returns its length and the
// INTN timestamp. It returns 0 when nothing is pending. A frame that does
// not fit in buf is discarded with ErrBadParam.
func (h *Hub) Read(buf []byte) (n int, timestampUs uint32, err error) {
	if h.rxLen == 0 {
		return 0, 0, nil
	}
	if len(buf) >= h.rxLen {
		n = copy(buf, h.rx[:h.rxLen])
		timestampUs = h.rxTimestamp
	} else {
		err = ErrBadParam
	}
	h.rxLen = 0

	// the buffer is free again; a blocked write may go now
	critical(h.activate)
	return n, timestampUs, err
}

// Write queues frame for transmission and wakes the hub. It returns 0 while
// a previous frame is still queued.
func (h *Hub) Write(frame []byte) (int, error) {
	if len(frame) > len(h.tx) {
		return 0, ErrBadParam
	}
	if h.txLen != 0 {
		return 0, nil
	}
	copy(h.tx[:], frame)
	critical(func() { h.txLen = len(frame) })

	h.pins.Wake.Set(false)
	return len(frame), nil
}
