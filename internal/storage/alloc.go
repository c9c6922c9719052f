package storage

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Allocator accounts for the memory a Store takes. Every node, slot array
// and quantum is reserved before it is made and released when it is dropped.
type Allocator interface {
	Reserve(n int64) error
	Release(n int64)
}

// HeapAllocator allocates from the Go heap. A zero Limit means unlimited.
// One HeapAllocator may be shared by several stores.
type HeapAllocator struct {
	Limit int64
	used  atomic.Int64
}

func NewHeapAllocator(limit int64) *HeapAllocator {
	return &HeapAllocator{Limit: limit}
}

func (a *HeapAllocator) Reserve(n int64) error {
	for {
		cur := a.used.Load()
		next := cur + n
		if a.Limit > 0 && next > a.Limit {
			return fmt.Errorf("%w: need %d bytes, %d of %d in use", ErrOutOfMemory, n, cur, a.Limit)
		}
		if a.used.CompareAndSwap(cur, next) {
			return nil
		}
	}
}

func (a *HeapAllocator) Release(n int64) {
	a.used.Add(-n)
}

func (a *HeapAllocator) Used() int64 {
	return a.used.Load()
}

var (
	nodeCost = int64(unsafe.Sizeof(node{}))
	slotCost = int64(unsafe.Sizeof([]byte(nil)))
)

func (s *Store) allocNode() (*node, error) {
	if err := s.alloc.Reserve(nodeCost); err != nil {
		return nil, err
	}
	s.reserved += nodeCost
	s.nodes++
	return &node{}, nil
}

func (s *Store) allocSlots() ([][]byte, error) {
	n := int64(s.cfg.Qset) * slotCost
	if err := s.alloc.Reserve(n); err != nil {
		return nil, err
	}
	s.reserved += n
	s.slots++
	return make([][]byte, s.cfg.Qset), nil
}

func (s *Store) allocQuantum() ([]byte, error) {
	n := int64(s.cfg.Quantum)
	if err := s.alloc.Reserve(n); err != nil {
		return nil, err
	}
	s.reserved += n
	s.quanta++
	return make([]byte, s.cfg.Quantum), nil
}

// freeNode drops the node's slot array and quanta. The successor link is left to the caller.
func (s *Store) freeNode(n *node) {
	if n.data != nil {
		for i, q := range n.data {
			if q == nil {
				continue
			}
			s.release(int64(s.cfg.Quantum))
			s.quanta--
			n.data[i] = nil
		}
		s.release(int64(s.cfg.Qset) * slotCost)
		s.slots--
		n.data = nil
	}
	s.release(nodeCost)
	s.nodes--
}

func (s *Store) release(n int64) {
	s.alloc.Release(n)
	s.reserved -= n
}
