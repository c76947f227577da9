// Package dbc reads the subset of the Vector DBC format that describes the
// vehicle bus: BO_ message lines, their SG_ signal lines and the IDMask
// message attribute. Everything else (other attributes, value tables,
// comments) is skipped.
//
// IDMask widens a message to a range of identifiers, the way the dispatch
// table matches them:
//
//	BA_DEF_ BO_ "IDMask" INT 0 2047;
//	BA_ "IDMask" BO_ 512 2032;
//
// Messages without it match their identifier exactly.
//
// Start bits are taken as positions in the flat frame bit space for both byte
// orders, which is how the canbus codec addresses them.
package dbc

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/danielljeon/nerve/canbus"
)

var (
	messageRE = regexp.MustCompile(`^BO_\s+(\d+)\s+(\w+)\s*:\s*(\d+)\s+(\w+)`)
	maskRE    = regexp.MustCompile(`^BA_\s+"IDMask"\s+BO_\s+(\d+)\s+(\d+)\s*;`)
	signalRE  = regexp.MustCompile(`^SG_\s+(\w+)\s*:\s*(\d+)\|(\d+)@([01])([+-])\s*\(([^,]+),([^)]+)\)\s*\[([^|]+)\|([^\]]+)\]\s*"([^"]*)"`)
)

// ErrUnsupported is returned for DBC features the codec cannot express.
var ErrUnsupported = errors.New("dbc: unsupported")

// Parse reads a DBC description and returns its messages in file order.
func Parse(r io.Reader) ([]canbus.Message, error) {
	var (
		msgs   []canbus.Message
		cur    *canbus.Message
		lineNo int
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "BO_ "):
			m, err := parseMessage(line)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNo)
			}
			msgs = append(msgs, m)
			cur = &msgs[len(msgs)-1]
		case strings.HasPrefix(line, "SG_ "):
			if cur == nil {
				return nil, errors.Errorf("line %d: signal outside a message", lineNo)
			}
			s, err := parseSignal(line)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNo)
			}
			cur.Signals = append(cur.Signals, s)
		case strings.HasPrefix(line, `BA_ "IDMask"`):
			if err := applyMask(msgs, line); err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNo)
			}
		case line == "":
			cur = nil
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "dbc: read")
	}
	return msgs, nil
}

func parseMessage(line string) (canbus.Message, error) {
	m := messageRE.FindStringSubmatch(line)
	if m == nil {
		return canbus.Message{}, errors.Errorf("dbc: malformed message %q", line)
	}
	id, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return canbus.Message{}, errors.Wrap(err, "dbc: message id")
	}
	// bit 31 marks an extended identifier
	if id&0x80000000 != 0 {
		return canbus.Message{}, errors.Wrapf(ErrUnsupported, "extended id %s", m[1])
	}
	dlc, err := strconv.ParseUint(m[3], 10, 8)
	if err != nil || dlc > canbus.MaxDataLen {
		return canbus.Message{}, errors.Errorf("dbc: bad dlc %q", m[3])
	}
	return canbus.Message{
		Name:   m[2],
		ID:     uint32(id),
		IDMask: canbus.StandardIDMask,
		DLC:    uint8(dlc),
	}, nil
}

func applyMask(msgs []canbus.Message, line string) error {
	m := maskRE.FindStringSubmatch(line)
	if m == nil {
		return errors.Errorf("dbc: malformed attribute %q", line)
	}
	id, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return errors.Wrap(err, "dbc: mask message id")
	}
	mask, err := strconv.ParseUint(m[2], 10, 32)
	if err != nil || mask > canbus.StandardIDMask {
		return errors.Errorf("dbc: bad mask %q", m[2])
	}
	for i := range msgs {
		if msgs[i].ID == uint32(id) {
			msgs[i].IDMask = uint32(mask)
			return nil
		}
	}
	return errors.Errorf("dbc: mask for unknown message %s", m[1])
}

func parseSignal(line string) (canbus.Signal, error) {
	m := signalRE.FindStringSubmatch(line)
	if m == nil {
		return canbus.Signal{}, errors.Errorf("dbc: malformed signal %q", line)
	}
	if m[5] == "-" {
		return canbus.Signal{}, errors.Wrapf(ErrUnsupported, "signed signal %s", m[1])
	}
	start, err := strconv.ParseUint(m[2], 10, 8)
	if err != nil {
		return canbus.Signal{}, errors.Wrapf(err, "dbc: %s start bit", m[1])
	}
	length, err := strconv.ParseUint(m[3], 10, 8)
	if err != nil {
		return canbus.Signal{}, errors.Wrapf(err, "dbc: %s length", m[1])
	}
	var f [4]float64
	for i, src := range []string{m[6], m[7], m[8], m[9]} {
		f[i], err = strconv.ParseFloat(strings.TrimSpace(src), 64)
		if err != nil {
			return canbus.Signal{}, errors.Wrapf(err, "dbc: %s number %q", m[1], src)
		}
	}
	order := canbus.LittleEndian
	if m[4] == "0" {
		order = canbus.BigEndian
	}
	return canbus.Signal{
		Name:     m[1],
		StartBit: uint8(start),
		Length:   uint8(length),
		Order:    order,
		Scale:    f[0],
		Offset:   f[1],
		Min:      f[2],
		Max:      f[3],
		Unit:     m[10],
	}, nil
}
