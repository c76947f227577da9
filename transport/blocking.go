package transport

import "tinygo.org/x/drivers"

// BlockingSPI runs transfers on a blocking drivers.SPI bus and then calls
// Complete, standing in for the DMA completion interrupt. A transfer started
// from inside Complete is run once the current completion returns, so
// chained transfers never nest.
type BlockingSPI struct {
	Bus      drivers.SPI
	Complete func()

	inside  bool
	pending bool
}

// StartTransfer exchanges tx and rx, which must be the same length.
func (s *BlockingSPI) StartTransfer(tx, rx []byte) error {
	if err := s.Bus.Tx(tx, rx); err != nil {
		return err
	}
	s.pending = true
	if s.inside {
		return nil
	}
	s.inside = true
	for s.pending {
		s.pending = false
		s.Complete()
	}
	s.inside = false
	return nil
}
