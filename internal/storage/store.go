package storage

import (
	"context"
	"fmt"
	"math"
)

// Store is a sparse byte space kept as a chain of quantum sets. Quanta are
// allocated on first write; regions never written read back as holes.
//
// Every operation holds the store's Serializer for its whole duration.
type Store struct {
	cfg   Config
	alloc Allocator
	lock  *Serializer

	head *node
	size int64

	nodes    int
	slots    int
	quanta   int
	reserved int64
}

// Stats is a point-in-time view of a Store.
type Stats struct {
	Size       int64
	Nodes      int
	SlotArrays int
	Quanta     int
	Reserved   int64
	Quantum    int
	Qset       int
}

type Option func(*Store)

// WithAllocator makes the store account its memory against a.
func WithAllocator(a Allocator) Option {
	return func(s *Store) {
		s.alloc = a
	}
}

func New(cfg Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Store{
		cfg:  cfg,
		lock: NewSerializer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.alloc == nil {
		s.alloc = NewHeapAllocator(0)
	}
	return s, nil
}

func (s *Store) Config() Config {
	return s.cfg
}

// Read copies bytes starting at off into p and returns how many were copied.
// A single call never crosses a quantum boundary. Reading at or past the
// logical size, or inside a region that was never written, returns 0 and a
// nil error.
func (s *Store) Read(ctx context.Context, p []byte, off int64) (int, error) {
	pos, err := Locate(off, s.cfg)
	if err != nil {
		return 0, err
	}

	if err := s.lock.Lock(ctx); err != nil {
		return 0, err
	}
	defer s.lock.Unlock()

	if off >= s.size {
		return 0, nil
	}

	count := int64(len(p))
	if count > s.size-off {
		count = s.size - off
	}

	n := s.lookup(pos.Item)
	if n == nil || n.data == nil || n.data[pos.Slot] == nil {
		return 0, nil
	}

	if count > int64(s.cfg.Quantum-pos.Offset) {
		count = int64(s.cfg.Quantum - pos.Offset)
	}

	return copy(p[:count], n.data[pos.Slot][pos.Offset:]), nil
}

// Write copies p into the store at off, allocating whatever the target
// quantum needs, and returns how many bytes were stored. A single call never
// crosses a quantum boundary; callers reissue the remainder at off+n.
func (s *Store) Write(ctx context.Context, p []byte, off int64) (int, error) {
	pos, err := Locate(off, s.cfg)
	if err != nil {
		return 0, err
	}
	if int64(len(p)) > math.MaxInt64-off {
		return 0, fmt.Errorf("%w: write of %d bytes at %d overflows", ErrInvalidArgument, len(p), off)
	}

	if err := s.lock.Lock(ctx); err != nil {
		return 0, err
	}
	defer s.lock.Unlock()

	if len(p) == 0 {
		return 0, nil
	}

	n, err := s.follow(pos.Item)
	if err != nil {
		return 0, err
	}

	if n.data == nil {
		if n.data, err = s.allocSlots(); err != nil {
			return 0, err
		}
	}

	if n.data[pos.Slot] == nil {
		if n.data[pos.Slot], err = s.allocQuantum(); err != nil {
			return 0, err
		}
	}

	count := copy(n.data[pos.Slot][pos.Offset:], p)

	if end := off + int64(count); end > s.size {
		s.size = end
	}
	return count, nil
}

// Truncate drops every quantum, slot array and node and resets the size to zero.
func (s *Store) Truncate(ctx context.Context) error {
	if err := s.lock.Lock(ctx); err != nil {
		return err
	}
	defer s.lock.Unlock()

	s.trim()
	return nil
}

func (s *Store) Stat(ctx context.Context) (Stats, error) {
	if err := s.lock.Lock(ctx); err != nil {
		return Stats{}, err
	}
	defer s.lock.Unlock()

	return s.stats(), nil
}

func (s *Store) stats() Stats {
	return Stats{
		Size:       s.size,
		Nodes:      s.nodes,
		SlotArrays: s.slots,
		Quanta:     s.quanta,
		Reserved:   s.reserved,
		Quantum:    s.cfg.Quantum,
		Qset:       s.cfg.Qset,
	}
}

// Walk calls fn for every allocated quantum in offset order while holding
// the store, then returns the stats the walk observed. fn must not retain q
// or call back into the store.
func (s *Store) Walk(ctx context.Context, fn func(off int64, q []byte) error) (Stats, error) {
	if err := s.lock.Lock(ctx); err != nil {
		return Stats{}, err
	}
	defer s.lock.Unlock()

	var item int64
	for n := s.head; n != nil; n, item = n.next, item+1 {
		if n.data == nil {
			continue
		}
		for slot, q := range n.data {
			if q == nil {
				continue
			}
			off := Position{Item: item, Slot: slot}.Start(s.cfg)
			if err := fn(off, q); err != nil {
				return Stats{}, err
			}
		}
	}
	return s.stats(), nil
}
