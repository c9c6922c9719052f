package storage

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Serializer admits one storage operation at a time. Waiting for it can be
// abandoned through the caller's context.
type Serializer struct {
	sem *semaphore.Weighted
}

func NewSerializer() *Serializer {
	return &Serializer{sem: semaphore.NewWeighted(1)}
}

// Lock fails with ErrInterrupted if ctx is already done or ends while waiting.
func (s *Serializer) Lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, err)
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, err)
	}
	return nil
}

func (s *Serializer) Unlock() {
	s.sem.Release(1)
}
