package storage

import (
	"fmt"

	"github.com/sekai02/scull/internal/sys"
)

// Config fixes the geometry of a Store. It cannot change after New.
type Config struct {
	Quantum int
	Qset    int
}

func DefaultConfig() Config {
	return Config{
		Quantum: sys.Quantum,
		Qset:    sys.Qset,
	}
}

// ItemSize is the number of bytes addressed by one node of the chain.
func (c Config) ItemSize() int64 {
	return int64(c.Quantum) * int64(c.Qset)
}

func (c Config) Validate() error {
	if c.Quantum <= 0 {
		return fmt.Errorf("%w: quantum %d", ErrInvalidArgument, c.Quantum)
	}
	if c.Qset <= 0 {
		return fmt.Errorf("%w: qset %d", ErrInvalidArgument, c.Qset)
	}
	return nil
}
