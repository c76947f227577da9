// Package nmea reassembles NMEA 0183 sentences from a GPS UART and keeps the
// latest fix. $GNGGA is parsed here; RMC is handed to the tinygo gps parser
// for speed and course. Other sentences are ignored.
package nmea

import (
	"strconv"
	"strings"

	"tinygo.org/x/drivers/gps"

	"github.com/danielljeon/nerve/diagnostics"
	"github.com/danielljeon/nerve/transport"
)

const (
	// DMABufferSize is the circular UART region; each half is walked on its
	// own interrupt.
	DMABufferSize = 256
	// MaxSentence is the longest sentence kept, '$' included.
	MaxSentence = 128
)

// Receiver is the sentence state machine. It is an io.Writer: bytes come from
// the DMA half/full callbacks or straight from a polled UART.
type Receiver struct {
	fix    *Fix
	faults diagnostics.Counter
	rmc    gps.Parser
	dma    *transport.DMABuffer

	buf        [MaxSentence]byte
	n          int
	inSentence bool
}

// NewReceiver returns a receiver that updates fix in place and counts
// malformed sentences against faults.
func NewReceiver(fix *Fix, faults diagnostics.Counter) *Receiver {
	r := &Receiver{fix: fix, faults: faults, rmc: gps.NewParser()}
	r.dma = transport.NewDMABuffer(DMABufferSize, r)
	return r
}

// DMA returns the region the UART DMA engine writes into.
func (r *Receiver) DMA() *transport.DMABuffer { return r.dma }

// HalfComplete walks the first half of the DMA region.
func (r *Receiver) HalfComplete() { r.dma.HalfComplete() }

// Complete walks the second half of the DMA region.
func (r *Receiver) Complete() { r.dma.Complete() }

// Write feeds bytes through the state machine. It never fails.
func (r *Receiver) Write(p []byte) (int, error) {
	for _, b := range p {
		r.feed(b)
	}
	return len(p), nil
}

func (r *Receiver) feed(b byte) {
	switch {
	case b == '$':
		if r.inSentence {
			// the previous sentence never ended
			r.faults.Inc()
		}
		r.inSentence = true
		r.buf[0] = b
		r.n = 1
	case !r.inSentence:
	case b == '\n':
		r.inSentence = false
		n := r.n
		if n > 0 && r.buf[n-1] == '\r' {
			n--
		}
		r.sentence(string(r.buf[:n]))
		r.n = 0
	case r.n == len(r.buf):
		r.faults.Inc()
		r.inSentence = false
		r.n = 0
	default:
		r.buf[r.n] = b
		r.n++
	}
}

func (r *Receiver) sentence(s string) {
	if !Validate(s) {
		r.faults.Inc()
		return
	}
	body := s[1:strings.LastIndexByte(s, '*')]
	if len(body) < 5 {
		return
	}
	// GGA only from the multi-constellation talker; RMC from any
	var err error
	switch {
	case body[:5] == "GNGGA":
		err = r.fix.parseGGA(body)
	case body[2:5] == "RMC":
		err = r.parseRMC(s)
	default:
		return
	}
	if err != nil {
		r.faults.Inc()
		return
	}
	r.fix.Sentences++
}

// parseRMC runs the drivers' parser over a validated sentence. NMEA 4.1
// receivers append a navigational status field that the parser does not
// expect, so it is dropped first.
func (r *Receiver) parseRMC(s string) error {
	body := s[:strings.LastIndexByte(s, '*')]
	if fields := strings.Split(body, ","); len(fields) == 14 {
		body = strings.Join(fields[:13], ",")
	}
	f, err := r.rmc.Parse(body)
	if err != nil {
		return err
	}
	if !f.Valid {
		return nil
	}
	r.fix.GroundSpeed = float64(f.Speed) * KnotsToMetresPerSecond
	r.fix.Course = float64(f.Heading)
	return nil
}

// Checksum XORs every byte of body, the text between '$' and '*'.
func Checksum(body string) byte {
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return sum
}

// Validate reports whether sentence starts with '$' and carries a '*' and two
// hex digits matching its checksum. Trailing CR/LF are ignored; either hex
// case is accepted.
func Validate(sentence string) bool {
	sentence = strings.TrimRight(sentence, "\r\n")
	if len(sentence) < 4 || sentence[0] != '$' {
		return false
	}
	star := strings.LastIndexByte(sentence, '*')
	if star < 0 || len(sentence)-star != 3 {
		return false
	}
	want, err := strconv.ParseUint(sentence[star+1:], 16, 8)
	if err != nil {
		return false
	}
	return Checksum(sentence[1:star]) == byte(want)
}
