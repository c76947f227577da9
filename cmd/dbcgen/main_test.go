package main

import (
	"bytes"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/danielljeon/nerve/canbus"
)

func TestGenerate(t *testing.T) {
	c := qt.New(t)
	msgs := []canbus.Message{{
		Name: "Barometric", ID: 0x101, IDMask: canbus.StandardIDMask, DLC: 5,
		Signals: []canbus.Signal{{
			Name: "temperature", StartBit: 20, Length: 12, Order: canbus.LittleEndian,
			Scale: 0.05, Offset: -40, Min: -40, Max: 164.75, Unit: "degC",
		}},
	}}
	var buf bytes.Buffer
	c.Assert(generate(&buf, "x.dbc", "bus", "Messages", msgs), qt.IsNil)
	out := buf.String()
	c.Assert(out, qt.Contains, "package bus\n")
	c.Assert(out, qt.Contains, `{Name: "Barometric", ID: 0x101, IDMask: 0x7ff, DLC: 5, Signals: []canbus.Signal{`)
	c.Assert(out, qt.Contains, `{Name: "temperature", StartBit: 20, Length: 12, Order: canbus.LittleEndian, Scale: 0.05, Offset: -40, Min: -40, Max: 164.75, Unit: "degC"},`)

	_, err := parser.ParseFile(token.NewFileSet(), "messages.go", out, 0)
	c.Assert(err, qt.IsNil)
}

func TestRunNerveDBC(t *testing.T) {
	c := qt.New(t)
	out := filepath.Join(t.TempDir(), "messages.go")
	c.Assert(run("../../canbus/nerve.dbc", out), qt.IsNil)

	src, err := os.ReadFile(out)
	c.Assert(err, qt.IsNil)
	_, err = parser.ParseFile(token.NewFileSet(), out, src, 0)
	c.Assert(err, qt.IsNil)
	for _, m := range canbus.NerveMessages(canbus.Handlers{}) {
		c.Assert(string(src), qt.Contains, `Name: "`+m.Name+`"`)
	}
	c.Assert(string(src), qt.Contains, `{Name: "Setpoint", ID: 0x200, IDMask: 0x7f0, DLC: 6,`)
	c.Assert(string(src), qt.Contains, `{Name: "Heartbeat", ID: 0x300, IDMask: 0x700, DLC: 0,`)
	c.Assert(strings.HasPrefix(string(src), "// Code generated by dbcgen from nerve.dbc. DO NOT EDIT."), qt.IsTrue)
}

func TestRunErrors(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	c.Assert(run(filepath.Join(dir, "missing.dbc"), ""), qt.ErrorMatches, "open: .*")

	bad := filepath.Join(dir, "bad.dbc")
	c.Assert(os.WriteFile(bad, []byte("BO_ 1 A: 9 X\n"), 0o644), qt.IsNil)
	c.Assert(run(bad, ""), qt.ErrorMatches, `line 1: dbc: bad dlc "9"`)

	wide := filepath.Join(dir, "wide.dbc")
	c.Assert(os.WriteFile(wide, []byte("BO_ 1 A: 1 X\n SG_ s : 0|16@1+ (1,0) [0|1] \"\" X\n"), 0o644), qt.IsNil)
	c.Assert(run(wide, ""), qt.ErrorMatches, "table: A.s: bit 8 past payload end: .*")
}
