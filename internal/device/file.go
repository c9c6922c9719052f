package device

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sekai02/scull/internal/ids"
	"github.com/sekai02/scull/internal/storage"
)

type Flags int

const (
	ReadOnly Flags = iota
	WriteOnly
	ReadWrite
)

func ParseFlags(mode string) (Flags, error) {
	switch strings.ToLower(mode) {
	case "r", "ro", "":
		return ReadOnly, nil
	case "w", "wo":
		return WriteOnly, nil
	case "rw":
		return ReadWrite, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadMode, mode)
}

func (f Flags) valid() bool    { return f >= ReadOnly && f <= ReadWrite }
func (f Flags) Readable() bool { return f == ReadOnly || f == ReadWrite }
func (f Flags) Writable() bool { return f == WriteOnly || f == ReadWrite }

func (f Flags) String() string {
	switch f {
	case ReadOnly:
		return "r"
	case WriteOnly:
		return "w"
	case ReadWrite:
		return "rw"
	}
	return fmt.Sprintf("Flags(%d)", int(f))
}

// File is an open handle on a device with its own position.
type File struct {
	ID    ids.HandleID
	Dev   *Device
	Flags Flags

	mu  sync.Mutex
	pos int64
}

// Read performs one store read at the current position and advances it by
// the count returned. A zero count means end of data or a hole.
func (f *File) Read(ctx context.Context, p []byte) (int, error) {
	if !f.Flags.Readable() {
		return 0, ErrNotReadable
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.Dev.Store.Read(ctx, p, f.pos)
	f.pos += int64(n)
	return n, err
}

// Write performs one store write at the current position. It may store
// fewer bytes than len(p); the caller continues with p[n:].
func (f *File) Write(ctx context.Context, p []byte) (int, error) {
	if !f.Flags.Writable() {
		return 0, ErrNotWritable
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.Dev.Store.Write(ctx, p, f.pos)
	f.pos += int64(n)
	return n, err
}

// Seek moves the position. io.SeekEnd is relative to the device's logical size.
func (f *File) Seek(ctx context.Context, off int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = f.pos
	case io.SeekEnd:
		st, err := f.Dev.Store.Stat(ctx)
		if err != nil {
			return f.pos, err
		}
		base = st.Size
	default:
		return f.pos, fmt.Errorf("%w: whence %d", storage.ErrInvalidArgument, whence)
	}

	next := base + off
	if next < 0 {
		return f.pos, fmt.Errorf("%w: position %d", storage.ErrInvalidArgument, next)
	}
	f.pos = next
	return next, nil
}

func (f *File) Pos() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.pos
}
