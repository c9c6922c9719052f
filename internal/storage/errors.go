package storage

import "errors"

var (
	// ErrInvalidArgument indicates a negative offset, an overflowing range or a bad config.
	ErrInvalidArgument = errors.New("storage: invalid argument")

	// ErrOutOfMemory indicates that a node, slot array or quantum could not be allocated.
	ErrOutOfMemory = errors.New("storage: out of memory")

	// ErrInterrupted indicates that lock acquisition was abandoned because the caller's context ended.
	ErrInterrupted = errors.New("storage: interrupted")
)
