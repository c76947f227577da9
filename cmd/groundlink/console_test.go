package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/rs/zerolog"

	"github.com/danielljeon/nerve/diagnostics"
	"github.com/danielljeon/nerve/xbee"
)

func frame(data ...byte) []byte {
	var b xbee.Builder
	b.Reset()
	b.AddBytes(data)
	f, err := b.Finalize()
	if err != nil {
		panic(err)
	}
	return append([]byte(nil), f...)
}

func rxPacket(text string) []byte {
	data := []byte{xbee.TypeRxPacket,
		0x00, 0x13, 0xA2, 0x00, 0x40, 0x0A, 0x01, 0x27,
		0xFF, 0xFE,
		0x01,
	}
	return frame(append(data, text...)...)
}

func newTestLink() (*link, *bytes.Buffer, *bytes.Buffer, *bytes.Buffer) {
	var logs, modem, out bytes.Buffer
	l := newLink(zerolog.New(&logs), &modem, &out)
	return l, &logs, &modem, &out
}

func lastEntry(t *testing.T, logs *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &m); err != nil {
		t.Fatalf("log line %q: %v", lines[len(lines)-1], err)
	}
	return m
}

func TestTelemetryPacketIsLoggedByField(t *testing.T) {
	c := qt.New(t)
	l, logs, _, _ := newTestLink()

	// split across two writes
	f := rxPacket("temp=21.500000,baro=101325.000000,f=0")
	l.Write(f[:10])
	l.Write(f[10:])

	e := lastEntry(t, logs)
	c.Assert(e["message"], qt.Equals, "telemetry")
	c.Assert(e["src64"], qt.Equals, "0013A200400A0127")
	c.Assert(e["temp"], qt.Equals, "21.500000")
	c.Assert(e["baro"], qt.Equals, "101325.000000")
	c.Assert(e["f"], qt.Equals, "0")
}

func TestPlainPacket(t *testing.T) {
	c := qt.New(t)
	l, logs, _, _ := newTestLink()
	l.Write(rxPacket("hello ground"))
	e := lastEntry(t, logs)
	c.Assert(e["message"], qt.Equals, "packet")
	c.Assert(e["data"], qt.Equals, "hello ground")
}

func TestParseTelemetry(t *testing.T) {
	tests := []struct {
		in   string
		want []field
	}{
		{"a=1", []field{{"a", "1"}}},
		{"lat=48.1_N,long=11.5_E", []field{{"lat", "48.1_N"}, {"long", "11.5_E"}}},
		{"no pairs here", nil},
		{"a=1,,b=2", nil},
		{"=1", nil},
	}
	for _, tt := range tests {
		got := parseTelemetry(tt.in)
		if len(got) != len(tt.want) {
			t.Fatalf("parseTelemetry(%q) = %v, want %v", tt.in, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("parseTelemetry(%q)[%d] = %v, want %v", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestSendCommand(t *testing.T) {
	c := qt.New(t)
	l, _, modem, _ := newTestLink()

	c.Assert(l.execute(`send 0x0013A200400A0127 FFFE "arm now" critical`), qt.IsNil)
	var faults diagnostics.Counters
	var got xbee.TxRequest
	rx := xbee.NewReceiver(xbee.Handlers{TxRequest: func(r xbee.TxRequest) {
		got = r
		got.Payload = append([]byte(nil), r.Payload...)
	}}, faults.For(diagnostics.Radio))
	rx.Write(modem.Bytes())
	c.Assert(faults.Total(), qt.Equals, uint8(0))

	c.Assert(got.Dest64, qt.Equals, uint64(0x0013A200400A0127))
	c.Assert(got.Dest16, qt.Equals, uint16(0xFFFE))
	c.Assert(got.Critical, qt.IsTrue)
	c.Assert(string(got.Payload), qt.Equals, "arm now")
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		line string
		err  string
	}{
		{"send 1 2", "usage: send .*"},
		{"send zz FFFE hi", "dest64: .*"},
		{"send 1 FFFFF hi", "dest16: .*"},
		{"send 1 2 hi loud", `unknown flag "loud"`},
		{"launch", `unknown command "launch"`},
		{`send 1 2 "unterminated`, "parse command: .*"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			l, _, _, _ := newTestLink()
			qt.Assert(t, l.execute(tt.line), qt.ErrorMatches, tt.err)
		})
	}
}

func TestStatsAndQuit(t *testing.T) {
	c := qt.New(t)
	l, logs, _, out := newTestLink()
	l.Write(frame(xbee.TypeTxStatus, 0x01, 0xFF, 0xFE, 0x00, 0x00, 0x00))
	l.Write(frame(xbee.TypeTxStatus, 0x02, 0xFF, 0xFE, 0x00, 0x24, 0x00))
	c.Assert(lastEntry(t, logs)["level"], qt.Equals, "warn")

	c.Assert(l.execute("stats"), qt.IsNil)
	c.Assert(out.String(), qt.Equals, "delivered 1, failed 1, receive faults 0\n")
	c.Assert(l.execute(""), qt.IsNil)
	c.Assert(l.execute("quit"), qt.Equals, errQuit)
}
