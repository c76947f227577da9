package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/google/shlex"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/danielljeon/nerve/diagnostics"
	"github.com/danielljeon/nerve/xbee"
)

// errQuit ends the console loop.
var errQuit = errors.New("quit")

// link is the ground end of the radio: a receiver fed from the modem and a
// radio writing to it.
type link struct {
	log   zerolog.Logger
	radio *xbee.Radio
	out   io.Writer

	mu       sync.Mutex
	rx       *xbee.Receiver
	counters diagnostics.Counters
}

func newLink(log zerolog.Logger, modem io.Writer, out io.Writer) *link {
	l := &link{log: log, radio: xbee.NewRadio(modem), out: out}
	l.rx = xbee.NewReceiver(xbee.Handlers{
		Packet: l.onPacket,
		Status: l.onStatus,
	}, l.counters.For(diagnostics.Radio))
	return l
}

// Write feeds modem bytes to the receiver.
func (l *link) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rx.Write(p)
}

func (l *link) onPacket(p xbee.Packet) {
	ev := l.log.Info().
		Str("src64", fmt.Sprintf("%016X", p.Source64)).
		Str("src16", fmt.Sprintf("%04X", p.Source16))
	fields := parseTelemetry(string(p.Data))
	if fields == nil {
		ev.Str("data", string(p.Data)).Msg("packet")
		return
	}
	for _, f := range fields {
		ev = ev.Str(f.key, f.value)
	}
	ev.Msg("telemetry")
}

func (l *link) onStatus(frameID, delivery uint8) {
	ev := l.log.Info()
	if delivery != 0 {
		ev = l.log.Warn()
	}
	ev.Uint8("frame", frameID).Uint8("delivery", delivery).Msg("transmit status")
}

type field struct {
	key, value string
}

// parseTelemetry splits "k=v,k=v" strings. It returns nil when data is not in
// that form.
func parseTelemetry(data string) []field {
	var fields []field
	for _, part := range strings.Split(data, ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok || k == "" {
			return nil
		}
		fields = append(fields, field{k, v})
	}
	return fields
}

// execute runs one console line.
func (l *link) execute(line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return errors.Wrap(err, "parse command")
	}
	if len(args) == 0 {
		return nil
	}
	switch args[0] {
	case "send":
		return l.send(args[1:])
	case "stats":
		l.mu.Lock()
		s := l.rx.Stats()
		faults := l.counters.Count(diagnostics.Radio)
		l.mu.Unlock()
		fmt.Fprintf(l.out, "delivered %d, failed %d, receive faults %d\n", s.Delivered, s.Failed, faults)
		return nil
	case "quit", "exit":
		return errQuit
	case "help":
		fmt.Fprintln(l.out, "send <dest64> <dest16> <text> [critical] | stats | quit")
		return nil
	}
	return errors.Errorf("unknown command %q", args[0])
}

func (l *link) send(args []string) error {
	if len(args) < 3 || len(args) > 4 {
		return errors.New("usage: send <dest64> <dest16> <text> [critical]")
	}
	dest64, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 64)
	if err != nil {
		return errors.Wrap(err, "dest64")
	}
	dest16, err := strconv.ParseUint(strings.TrimPrefix(args[1], "0x"), 16, 16)
	if err != nil {
		return errors.Wrap(err, "dest16")
	}
	critical := false
	if len(args) == 4 {
		if args[3] != "critical" {
			return errors.Errorf("unknown flag %q", args[3])
		}
		critical = true
	}
	if err := l.radio.Send(dest64, uint16(dest16), []byte(args[2]), critical); err != nil {
		return errors.Wrap(err, "send")
	}
	l.log.Debug().Str("dest64", args[0]).Int("len", len(args[2])).Bool("critical", critical).Msg("sent")
	return nil
}
