package scullfs

import (
	"context"

	"github.com/sekai02/scull/internal/api"
	"github.com/sekai02/scull/internal/ids"
	"github.com/sekai02/scull/internal/persistence"
)

type DeviceAPI interface {
	DeviceList(ctx context.Context) ([]uint64, error)
	Stat(ctx context.Context, deviceID uint64) (api.DeviceStat, error)
	Open(ctx context.Context, deviceID uint64, mode string) (string, error)
	Read(ctx context.Context, handle string, length int) ([]byte, error)
	Write(ctx context.Context, handle string, data []byte) (int, error)
	Seek(ctx context.Context, handle string, off int64, whence int) (int64, error)
	Release(ctx context.Context, handle string) error
	Truncate(ctx context.Context, deviceID uint64) error
}

type SnapshotAPI interface {
	Snapshot(ctx context.Context, deviceID uint64, name string) (persistence.Manifest, error)
	Restore(ctx context.Context, deviceID uint64, name string) (persistence.Manifest, error)
	Snapshots(ctx context.Context) ([]persistence.Manifest, error)
	DeleteSnapshot(ctx context.Context, name string) error
}

type API interface {
	DeviceAPI
	SnapshotAPI
	Shutdown(ctx context.Context) error
}

var _ API = (*api.Service)(nil)

func DeviceIDFromUint64(v uint64) ids.DeviceID {
	return ids.DeviceID(v)
}

func DeviceIDToUint64(v ids.DeviceID) uint64 {
	return uint64(v)
}

func HandleIDFromString(s string) (ids.HandleID, error) {
	return ids.ParseHandle(s)
}
