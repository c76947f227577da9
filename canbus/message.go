package canbus

import (
	"fmt"

	"github.com/danielljeon/nerve/diagnostics"
)

// MaxDataLen is the classic CAN payload size.
const MaxDataLen = 8

// RxHandler receives the raw payload of a matched frame. Signal decoding is
// up to the handler.
type RxHandler func(id uint32, payload []byte)

// Message describes one CAN message of the bus contract.
type Message struct {
	Name    string
	ID      uint32
	IDMask  uint32 // 0x7FF for an exact 11-bit match
	DLC     uint8  // 0 accepts any length
	Signals []Signal

	// OnReceive runs when a frame matches this entry. Optional.
	OnReceive RxHandler
}

// Signal returns the named signal, or nil.
func (m *Message) Signal(name string) *Signal {
	for i := range m.Signals {
		if m.Signals[i].Name == name {
			return &m.Signals[i]
		}
	}
	return nil
}

// Encode packs values, one per signal in table order, into a fresh zeroed
// frame and returns the DLC-sized payload.
func (m *Message) Encode(values ...float64) ([]byte, error) {
	if len(values) != len(m.Signals) {
		return nil, fmt.Errorf("%s: %d values for %d signals: %w", m.Name, len(values), len(m.Signals), ErrSignalCount)
	}
	var frame [MaxDataLen]byte
	for i := range m.Signals {
		Encode(&m.Signals[i], values[i], frame[:])
	}
	n := int(m.DLC)
	if n == 0 {
		n = MaxDataLen
	}
	return frame[:n], nil
}

// Decode returns every signal's physical value, in table order.
func (m *Message) Decode(payload []byte) []float64 {
	out := make([]float64, len(m.Signals))
	for i := range m.Signals {
		out[i] = Decode(&m.Signals[i], payload)
	}
	return out
}

// validate checks that every signal fits inside the declared payload and that
// no two signals share a bit.
func (m *Message) validate() error {
	limit := uint(m.DLC) * 8
	if m.DLC == 0 {
		limit = MaxDataLen * 8
	}
	if m.DLC > MaxDataLen {
		return fmt.Errorf("%s: dlc %d: %w", m.Name, m.DLC, ErrBadDLC)
	}
	owner := make(map[uint]string)
	for i := range m.Signals {
		s := &m.Signals[i]
		if s.Length == 0 || s.Length > 64 {
			return fmt.Errorf("%s.%s: length %d: %w", m.Name, s.Name, s.Length, ErrSignalLength)
		}
		if s.Scale == 0 {
			return fmt.Errorf("%s.%s: %w", m.Name, s.Name, ErrZeroScale)
		}
		for _, b := range s.bits() {
			if b >= limit {
				return fmt.Errorf("%s.%s: bit %d past payload end: %w", m.Name, s.Name, b, ErrSignalRange)
			}
			if prev, ok := owner[b]; ok {
				return fmt.Errorf("%s: %s and %s share bit %d: %w", m.Name, prev, s.Name, b, ErrSignalOverlap)
			}
			owner[b] = s.Name
		}
	}
	return nil
}

// Table is the static message table. Order matters: the first matching entry
// wins, so more specific IDs go first. It cannot be changed once built.
type Table struct {
	messages []Message
	faults   diagnostics.Counter
}

// NewTable validates messages and freezes them into a Table. faults counts
// DLC mismatches seen by Dispatch.
func NewTable(faults diagnostics.Counter, messages ...Message) (*Table, error) {
	t := &Table{
		messages: make([]Message, len(messages)),
		faults:   faults,
	}
	copy(t.messages, messages)
	for i := range t.messages {
		m := &t.messages[i]
		if m.IDMask == 0 {
			m.IDMask = StandardIDMask
		}
		if m.ID&^m.IDMask != 0 {
			return nil, fmt.Errorf("%s: id %#x has bits outside mask %#x: %w", m.Name, m.ID, m.IDMask, ErrIDMask)
		}
		m.Signals = append([]Signal(nil), m.Signals...)
		if err := m.validate(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustNewTable is NewTable for init code.
func MustNewTable(faults diagnostics.Counter, messages ...Message) *Table {
	t, err := NewTable(faults, messages...)
	if err != nil {
		panic(err)
	}
	return t
}

// Dispatch routes one received frame. A frame whose ID matches an entry but
// whose length does not is a fault and is not offered to later entries.
// Frames nobody claims are dropped silently; other nodes share the bus.
func (t *Table) Dispatch(id uint32, dlc uint8, payload []byte) {
	for i := range t.messages {
		m := &t.messages[i]
		if id&m.IDMask != m.ID {
			continue
		}
		if m.DLC != 0 && dlc != m.DLC {
			t.faults.Inc()
			return
		}
		if m.OnReceive != nil {
			m.OnReceive(id, payload)
		}
		return
	}
}

// Lookup returns the entry a frame with id would match, or nil.
func (t *Table) Lookup(id uint32) *Message {
	for i := range t.messages {
		if id&t.messages[i].IDMask == t.messages[i].ID {
			return &t.messages[i]
		}
	}
	return nil
}

// Messages returns a copy of the table entries.
func (t *Table) Messages() []Message {
	return append([]Message(nil), t.messages...)
}
