package canbus

import "fmt"

// StandardIDMask matches all 11 bits of a standard identifier.
const StandardIDMask = 0x7FF

// Transmitter queues one frame on the bus. mcp2515.Device satisfies it.
type Transmitter interface {
	Tx(id uint32, dlc uint8, data []byte) error
}

// Receiver is polled for frames by the bus task.
type Receiver interface {
	Received() bool
	Next() (id uint32, dlc uint8, data []byte, err error)
}

// Send encodes values into m and transmits it.
func Send(tx Transmitter, m *Message, values ...float64) error {
	payload, err := m.Encode(values...)
	if err != nil {
		return err
	}
	if err := tx.Tx(m.ID, uint8(len(payload)), payload); err != nil {
		return fmt.Errorf("canbus: send %s: %w", m.Name, err)
	}
	return nil
}

// Poll drains rx into the table. It returns the number of frames read and the
// first receive error, which stops the drain.
func (t *Table) Poll(rx Receiver) (int, error) {
	n := 0
	for rx.Received() {
		id, dlc, data, err := rx.Next()
		if err != nil {
			return n, fmt.Errorf("canbus: receive: %w", err)
		}
		t.Dispatch(id, dlc, data)
		n++
	}
	return n, nil
}
