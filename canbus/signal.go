// Package canbus packs physical values into CAN payload bit fields and routes
// received frames to their handlers.
package canbus

import (
	"math"

	"github.com/danielljeon/nerve/mathx"
)

// ByteOrder of a signal's bits inside the frame.
type ByteOrder uint8

const (
	LittleEndian ByteOrder = iota // Intel
	BigEndian                     // Motorola
)

// Signal describes one value inside a frame: where its raw bits live and how
// raw maps to physical (physical = raw*Scale + Offset).
type Signal struct {
	Name     string
	StartBit uint8
	Length   uint8 // 1..64
	Order    ByteOrder
	Scale    float64
	Offset   float64
	Min, Max float64 // descriptive, not enforced by Decode/Encode
	Unit     string
}

// bitAt returns the frame bit that holds raw bit i of the signal, as a byte
// index and a bit number within that byte.
func (s *Signal) bitAt(i uint) (byteIdx uint, bit uint, rawBit uint) {
	pos := uint(s.StartBit) + i
	byteIdx = pos / 8
	if s.Order == BigEndian {
		return byteIdx, 7 - pos%8, uint(s.Length) - 1 - i
	}
	return byteIdx, pos % 8, i
}

// Raw assembles the unsigned raw value of s from frame. Bits beyond the end
// of frame read as zero.
func (s *Signal) Raw(frame []byte) uint64 {
	var raw uint64
	for i := uint(0); i < uint(s.Length); i++ {
		byteIdx, bit, rawBit := s.bitAt(i)
		if byteIdx >= uint(len(frame)) {
			continue
		}
		if frame[byteIdx]>>bit&1 != 0 {
			raw |= 1 << rawBit
		}
	}
	return raw
}

// Decode returns the physical value of s held in frame.
func Decode(s *Signal, frame []byte) float64 {
	return float64(s.Raw(frame))*s.Scale + s.Offset
}

// maxRaw is the largest raw value the signal can hold.
func (s *Signal) maxRaw() uint64 {
	if s.Length >= 64 {
		return math.MaxUint64
	}
	return 1<<s.Length - 1
}

// RawFor converts a physical value to the nearest raw value, saturating at
// the ends of the field instead of wrapping.
func (s *Signal) RawFor(value float64) uint64 {
	r := math.Round((value - s.Offset) / s.Scale)
	switch {
	case r <= 0 || math.IsNaN(r):
		return 0
	case r >= float64(s.maxRaw()):
		return s.maxRaw()
	}
	return uint64(r)
}

// PutRaw ORs raw into the signal's bits of frame. frame must already be
// zero in those bits; PutRaw never clears anything.
func (s *Signal) PutRaw(frame []byte, raw uint64) {
	for i := uint(0); i < uint(s.Length); i++ {
		byteIdx, bit, rawBit := s.bitAt(i)
		if byteIdx >= uint(len(frame)) {
			continue
		}
		if raw>>rawBit&1 != 0 {
			frame[byteIdx] |= 1 << bit
		}
	}
}

// Encode packs value into frame. Like PutRaw it only sets bits: callers
// reusing a buffer must zero it first.
func Encode(s *Signal, value float64, frame []byte) {
	s.PutRaw(frame, s.RawFor(value))
}

// Clamp limits v to [Min, Max] when the signal declares a range.
func (s *Signal) Clamp(v float64) float64 {
	if s.Min == 0 && s.Max == 0 {
		return v
	}
	return mathx.Constrain(v, s.Min, s.Max)
}

// bits returns the frame bit positions the signal occupies,
// numbered byte*8 + bit.
func (s *Signal) bits() []uint {
	out := make([]uint, 0, s.Length)
	for i := uint(0); i < uint(s.Length); i++ {
		byteIdx, bit, _ := s.bitAt(i)
		out = append(out, byteIdx*8+bit)
	}
	return out
}
