package api

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/sekai02/scull/internal/device"
	"github.com/sekai02/scull/internal/ids"
	"github.com/sekai02/scull/internal/persistence"
	"github.com/sekai02/scull/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, withSnapshots bool) *Service {
	t.Helper()

	mgr := device.NewManager(ids.NewGenerator(), storage.Config{Quantum: 16, Qset: 2}, storage.NewHeapAllocator(0))
	_, err := mgr.Setup(2)
	require.NoError(t, err)

	var snaps *persistence.Snapshotter
	if withSnapshots {
		snaps, err = persistence.Open("")
		require.NoError(t, err)
	}

	s := NewService(mgr, snaps)
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s
}

// readAll drains a handle one quantum at a time.
func readAll(t *testing.T, s *Service, h string) []byte {
	t.Helper()
	var out []byte
	for {
		chunk, err := s.Read(context.Background(), h, 64)
		require.NoError(t, err)
		if len(chunk) == 0 {
			return out
		}
		assert.LessOrEqual(t, len(chunk), 16)
		out = append(out, chunk...)
	}
}

func TestService_WriteReadCycle(t *testing.T) {
	s := newTestService(t, false)
	ctx := context.Background()

	devs, err := s.DeviceList(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1}, devs)

	h, err := s.Open(ctx, 1, "rw")
	require.NoError(t, err)

	data := bytes.Repeat([]byte("scull!"), 10)
	n, err := s.Write(ctx, h, data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n, "service write loops across quanta")

	pos, err := s.Seek(ctx, h, 0, io.SeekStart)
	require.NoError(t, err)
	assert.Zero(t, pos)
	assert.Equal(t, data, readAll(t, s, h))

	st, err := s.Stat(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), st.Size)
	assert.Equal(t, "scull1", st.Name)
	assert.Equal(t, 4, st.Quanta)

	require.NoError(t, s.Release(ctx, h))
	_, err = s.Read(ctx, h, 1)
	require.ErrorIs(t, err, device.ErrHandleNotFound)
}

// TestService_ReadLengthBoundedByQuantum checks that the read buffer is
// sized by the quantum, not by the requested length.
func TestService_ReadLengthBoundedByQuantum(t *testing.T) {
	s := newTestService(t, false)
	ctx := context.Background()

	h, err := s.Open(ctx, 0, "rw")
	require.NoError(t, err)

	data, err := s.Read(ctx, h, 1<<62)
	require.NoError(t, err)
	assert.Empty(t, data)

	_, err = s.Write(ctx, h, bytes.Repeat([]byte("q"), 40))
	require.NoError(t, err)
	_, err = s.Seek(ctx, h, 0, io.SeekStart)
	require.NoError(t, err)

	data, err = s.Read(ctx, h, 1<<62)
	require.NoError(t, err)
	assert.Len(t, data, 16)
}

func TestService_OpenWriteOnlyTruncates(t *testing.T) {
	s := newTestService(t, false)
	ctx := context.Background()

	h, err := s.Open(ctx, 0, "rw")
	require.NoError(t, err)
	_, err = s.Write(ctx, h, []byte("payload"))
	require.NoError(t, err)

	_, err = s.Open(ctx, 0, "w")
	require.NoError(t, err)

	st, err := s.Stat(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, st.Size)
}

func TestService_Errors(t *testing.T) {
	s := newTestService(t, false)
	ctx := context.Background()

	_, err := s.Open(ctx, 5, "r")
	require.ErrorIs(t, err, device.ErrDeviceNotFound)

	_, err = s.Open(ctx, 0, "x")
	require.ErrorIs(t, err, device.ErrBadMode)

	_, err = s.Read(ctx, "garbage", 1)
	require.ErrorIs(t, err, device.ErrHandleNotFound)

	require.ErrorIs(t, s.Truncate(ctx, 9), device.ErrDeviceNotFound)

	_, err = s.Snapshot(ctx, 0, "snap")
	require.ErrorIs(t, err, ErrNoSnapshots)
}

func TestService_SnapshotRestore(t *testing.T) {
	s := newTestService(t, true)
	ctx := context.Background()

	h, err := s.Open(ctx, 0, "rw")
	require.NoError(t, err)
	_, err = s.Write(ctx, h, []byte("remember me"))
	require.NoError(t, err)

	m, err := s.Snapshot(ctx, 0, "backup")
	require.NoError(t, err)
	assert.Equal(t, int64(11), m.Size)

	require.NoError(t, s.Truncate(ctx, 0))

	_, err = s.Restore(ctx, 1, "backup")
	require.NoError(t, err)

	h1, err := s.Open(ctx, 1, "r")
	require.NoError(t, err)
	assert.Equal(t, []byte("remember me"), readAll(t, s, h1))

	list, err := s.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "backup", list[0].Name)

	require.NoError(t, s.DeleteSnapshot(ctx, "backup"))
	_, err = s.Restore(ctx, 1, "backup")
	require.ErrorIs(t, err, persistence.ErrSnapshotNotFound)
}
