package storage

import "fmt"

// Position addresses one byte: the node in the chain, the slot within that
// node and the byte within the slot's quantum.
type Position struct {
	Item   int64
	Slot   int
	Offset int
}

// Locate translates a linear byte offset into chain coordinates.
func Locate(off int64, cfg Config) (Position, error) {
	if off < 0 {
		return Position{}, fmt.Errorf("%w: offset %d", ErrInvalidArgument, off)
	}

	itemSize := cfg.ItemSize()
	rest := off % itemSize

	return Position{
		Item:   off / itemSize,
		Slot:   int(rest / int64(cfg.Quantum)),
		Offset: int(rest % int64(cfg.Quantum)),
	}, nil
}

// Start is the inverse of Locate.
func (p Position) Start(cfg Config) int64 {
	return p.Item*cfg.ItemSize() + int64(p.Slot)*int64(cfg.Quantum) + int64(p.Offset)
}
