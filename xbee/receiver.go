package xbee

import (
	"encoding/binary"

	"github.com/danielljeon/nerve/diagnostics"
	"github.com/danielljeon/nerve/transport"
)

// DMABufferSize is the circular UART region shared by the half and full
// interrupts.
const DMABufferSize = 256

type rxState uint8

const (
	waitStart rxState = iota
	waitLenHigh
	waitLenLow
	waitBody
	waitChecksum
)

// Packet is a received 0x90 frame. Data aliases the receiver's buffer and is
// only valid during the callback.
type Packet struct {
	Source64 uint64
	Source16 uint16
	Options  uint8
	Data     []byte
}

// TxRequest is a decoded 0x10 frame.
type TxRequest struct {
	FrameID  uint8
	Dest64   uint64
	Dest16   uint16
	Radius   uint8
	Options  uint8
	Critical bool
	Payload  []byte
}

// ParseTxRequest decodes the frame data of a transmit request, type byte
// first, checksum excluded.
func ParseTxRequest(data []byte) (TxRequest, error) {
	if len(data) < txRequestLen || data[0] != TypeTxRequest {
		return TxRequest{}, ErrShortFrame
	}
	return TxRequest{
		FrameID:  data[1],
		Dest64:   binary.BigEndian.Uint64(data[2:10]),
		Dest16:   binary.BigEndian.Uint16(data[10:12]),
		Radius:   data[12],
		Options:  data[13],
		Critical: data[1] != frameIDUntracked,
		Payload:  data[txRequestLen:],
	}, nil
}

// Handlers receive classified frames. Nil handlers are skipped.
type Handlers struct {
	Packet    func(Packet)
	TxRequest func(TxRequest)
	// Status gets the frame id and delivery status of a 0x8B frame.
	Status func(frameID, delivery uint8)
}

// Stats are the transmit status tallies.
type Stats struct {
	Delivered uint32
	Failed    uint32
}

// Receiver is the API frame state machine fed from the radio UART.
type Receiver struct {
	handlers Handlers
	faults   diagnostics.Counter
	dma      *transport.DMABuffer
	stats    Stats

	state  rxState
	length int
	index  int
	frame  [MaxFrame]byte
}

func NewReceiver(h Handlers, faults diagnostics.Counter) *Receiver {
	r := &Receiver{handlers: h, faults: faults}
	r.dma = transport.NewDMABuffer(DMABufferSize, r)
	return r
}

// DMA returns the region the UART DMA engine writes into.
func (r *Receiver) DMA() *transport.DMABuffer { return r.dma }

func (r *Receiver) HalfComplete() { r.dma.HalfComplete() }
func (r *Receiver) Complete()     { r.dma.Complete() }

// Stats returns the transmit status tallies so far.
func (r *Receiver) Stats() Stats { return r.stats }

// Write feeds bytes through the state machine.
func (r *Receiver) Write(p []byte) (int, error) {
	for _, b := range p {
		r.feed(b)
	}
	return len(p), nil
}

func (r *Receiver) feed(b byte) {
	switch r.state {
	case waitStart:
		if b == StartDelimiter {
			r.length = 0
			r.index = 0
			r.state = waitLenHigh
		}
	case waitLenHigh:
		r.length = int(b) << 8
		r.state = waitLenLow
	case waitLenLow:
		r.length |= int(b)
		if r.length == 0 || r.length > len(r.frame) {
			r.faults.Inc()
			r.state = waitStart
			return
		}
		r.state = waitBody
	case waitBody:
		r.frame[r.index] = b
		r.index++
		if r.index == r.length {
			r.state = waitChecksum
		}
	case waitChecksum:
		r.state = waitStart
		data := r.frame[:r.length]
		if Checksum(data) != b {
			r.faults.Inc()
			return
		}
		r.dispatch(data)
	}
}

func (r *Receiver) dispatch(data []byte) {
	switch data[0] {
	case TypeTxStatus:
		if len(data) < 6 {
			r.faults.Inc()
			return
		}
		if data[5] == 0 {
			r.stats.Delivered++
		} else {
			r.stats.Failed++
		}
		if r.handlers.Status != nil {
			r.handlers.Status(data[1], data[5])
		}

	case TypeRxPacket:
		if len(data) < 12 {
			r.faults.Inc()
			return
		}
		if r.handlers.Packet != nil {
			r.handlers.Packet(Packet{
				Source64: binary.BigEndian.Uint64(data[1:9]),
				Source16: binary.BigEndian.Uint16(data[9:11]),
				Options:  data[11],
				Data:     data[12:],
			})
		}

	case TypeTxRequest:
		req, err := ParseTxRequest(data)
		if err != nil {
			r.faults.Inc()
			return
		}
		if r.handlers.TxRequest != nil {
			r.handlers.TxRequest(req)
		}
	}
}
