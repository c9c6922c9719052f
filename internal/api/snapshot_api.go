package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sekai02/scull/internal/ids"
	"github.com/sekai02/scull/internal/persistence"
)

var ErrNoSnapshots = errors.New("api: snapshots disabled")

func (s *Service) Snapshot(ctx context.Context, deviceID uint64, name string) (persistence.Manifest, error) {
	if s.snapshots == nil {
		return persistence.Manifest{}, ErrNoSnapshots
	}

	dev, err := s.deviceMgr.Lookup(ids.DeviceID(deviceID))
	if err != nil {
		return persistence.Manifest{}, err
	}

	m, err := s.snapshots.Save(ctx, name, dev.Store)
	if err != nil {
		slog.Error("Failed to save snapshot", "device", dev.Name, "snapshot", name, "error", err)
		return persistence.Manifest{}, fmt.Errorf("snapshot %s: %w", dev.Name, err)
	}

	slog.Info("Saved snapshot", "device", dev.Name, "snapshot", name, "size", m.Size, "quanta", m.Quanta)
	return m, nil
}

func (s *Service) Restore(ctx context.Context, deviceID uint64, name string) (persistence.Manifest, error) {
	if s.snapshots == nil {
		return persistence.Manifest{}, ErrNoSnapshots
	}

	dev, err := s.deviceMgr.Lookup(ids.DeviceID(deviceID))
	if err != nil {
		return persistence.Manifest{}, err
	}

	m, err := s.snapshots.Load(ctx, name, dev.Store)
	if err != nil {
		slog.Error("Failed to restore snapshot", "device", dev.Name, "snapshot", name, "error", err)
		return persistence.Manifest{}, fmt.Errorf("restore %s: %w", dev.Name, err)
	}

	slog.Info("Restored snapshot", "device", dev.Name, "snapshot", name, "size", m.Size)
	return m, nil
}

func (s *Service) Snapshots(ctx context.Context) ([]persistence.Manifest, error) {
	if s.snapshots == nil {
		return nil, ErrNoSnapshots
	}
	return s.snapshots.List()
}

func (s *Service) DeleteSnapshot(ctx context.Context, name string) error {
	if s.snapshots == nil {
		return ErrNoSnapshots
	}
	return s.snapshots.Delete(name)
}
