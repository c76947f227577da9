// Package xbee builds and parses XBee API frames:
//
//	0x7E | length (2, BE) | frame type | ... | checksum
//
// The checksum is 0xFF minus the low byte of the sum of every byte after the
// length field.
package xbee

import (
	"encoding/binary"
	"io"
)

const (
	StartDelimiter = 0x7E

	// MaxFrame is the largest frame either side handles, delimiter and
	// checksum included.
	MaxFrame = 128

	TypeTxRequest = 0x10
	TypeRxPacket  = 0x90
	TypeTxStatus  = 0x8B

	frameIDTracked   = 0x01
	frameIDUntracked = 0x00
	radiusMaxHops    = 0x00
	optionsAck       = 0x00
	optionsNoAck     = 0x01

	headerLen    = 3  // delimiter and length
	txRequestLen = 14 // type through options
	// MaxPayload is what fits in a transmit request.
	MaxPayload = MaxFrame - headerLen - txRequestLen - 1

	BroadcastAddress64 = 0x000000000000FFFF
	UnknownAddress16   = 0xFFFE
)

// Builder appends a frame into a fixed buffer. Bytes past the end are dropped
// and reported by Finalize.
type Builder struct {
	buf      [MaxFrame]byte
	n        int
	overflow bool
}

// Reset starts a new frame: delimiter and a length placeholder.
func (b *Builder) Reset() {
	b.buf[0] = StartDelimiter
	b.n = headerLen
	b.overflow = false
}

func (b *Builder) AddByte(v byte) {
	if b.n >= len(b.buf) {
		b.overflow = true
		return
	}
	b.buf[b.n] = v
	b.n++
}

func (b *Builder) AddBytes(p []byte) {
	for _, v := range p {
		b.AddByte(v)
	}
}

// Finalize back-patches the length and appends the checksum. The returned
// slice aliases the builder until the next Reset.
func (b *Builder) Finalize() ([]byte, error) {
	binary.BigEndian.PutUint16(b.buf[1:3], uint16(b.n-headerLen))
	b.AddByte(Checksum(b.buf[headerLen:b.n]))
	if b.overflow {
		return nil, ErrFrameTooLarge
	}
	return b.buf[:b.n], nil
}

// Checksum of the frame data between the length field and the checksum.
func Checksum(data []byte) byte {
	var sum byte
	for _, v := range data {
		sum += v
	}
	return 0xFF - sum
}

// Radio sends transmit requests over a UART.
type Radio struct {
	w io.Writer
	b Builder
}

func NewRadio(w io.Writer) *Radio {
	return &Radio{w: w}
}

// Send writes one transmit request. A critical frame gets a frame id, so the
// modem answers with a transmit status, and asks for a link-layer ack.
func (r *Radio) Send(dest64 uint64, dest16 uint16, payload []byte, critical bool) error {
	if len(payload) > MaxPayload {
		return ErrPayloadTooLarge
	}
	var addr [10]byte
	binary.BigEndian.PutUint64(addr[0:8], dest64)
	binary.BigEndian.PutUint16(addr[8:10], dest16)

	r.b.Reset()
	r.b.AddByte(TypeTxRequest)
	if critical {
		r.b.AddByte(frameIDTracked)
	} else {
		r.b.AddByte(frameIDUntracked)
	}
	r.b.AddBytes(addr[:])
	r.b.AddByte(radiusMaxHops)
	if critical {
		r.b.AddByte(optionsAck)
	} else {
		r.b.AddByte(optionsNoAck)
	}
	r.b.AddBytes(payload)

	frame, err := r.b.Finalize()
	if err != nil {
		return err
	}
	_, err = r.w.Write(frame)
	return err
}
