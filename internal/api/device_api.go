package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sekai02/scull/internal/device"
	"github.com/sekai02/scull/internal/ids"
	"github.com/sekai02/scull/internal/persistence"
)

type Service struct {
	deviceMgr *device.Manager
	snapshots *persistence.Snapshotter
}

// NewService wires the device manager to the snapshot store. snapshots may
// be nil, in which case snapshot calls fail.
func NewService(deviceMgr *device.Manager, snapshots *persistence.Snapshotter) *Service {
	return &Service{
		deviceMgr: deviceMgr,
		snapshots: snapshots,
	}
}

// DeviceStat is what the service reports about one device.
type DeviceStat struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Nodes    int    `json:"nodes"`
	Quanta   int    `json:"quanta"`
	Reserved int64  `json:"reserved"`
	Quantum  int    `json:"quantum"`
	Qset     int    `json:"qset"`
}

func (s *Service) DeviceList(ctx context.Context) ([]uint64, error) {
	devices := s.deviceMgr.List()
	result := make([]uint64, len(devices))
	for i, dev := range devices {
		result[i] = uint64(dev.ID)
	}
	return result, nil
}

func (s *Service) Stat(ctx context.Context, deviceID uint64) (DeviceStat, error) {
	dev, err := s.deviceMgr.Lookup(ids.DeviceID(deviceID))
	if err != nil {
		return DeviceStat{}, err
	}

	st, err := dev.Store.Stat(ctx)
	if err != nil {
		return DeviceStat{}, fmt.Errorf("stat %s: %w", dev.Name, err)
	}

	return DeviceStat{
		ID:       uint64(dev.ID),
		Name:     dev.Name,
		Size:     st.Size,
		Nodes:    st.Nodes,
		Quanta:   st.Quanta,
		Reserved: st.Reserved,
		Quantum:  st.Quantum,
		Qset:     st.Qset,
	}, nil
}

func (s *Service) Open(ctx context.Context, deviceID uint64, mode string) (string, error) {
	flags, err := device.ParseFlags(mode)
	if err != nil {
		return "", err
	}

	f, err := s.deviceMgr.Open(ctx, ids.DeviceID(deviceID), flags)
	if err != nil {
		return "", fmt.Errorf("open device %d: %w", deviceID, err)
	}

	slog.Debug("Opened device", "device", f.Dev.Name, "mode", flags, "handle", f.ID)
	return string(f.ID), nil
}

// Read performs a single device read of at most length bytes. The result
// never spans more than one quantum; an empty result means end of data or a hole.
func (s *Service) Read(ctx context.Context, handle string, length int) ([]byte, error) {
	if length < 0 {
		return nil, fmt.Errorf("negative length %d", length)
	}

	f, err := s.file(handle)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, min(length, f.Dev.Store.Config().Quantum))
	n, err := f.Read(ctx, buf)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Dev.Name, err)
	}
	return buf[:n], nil
}

// Write keeps issuing device writes until data is consumed or one fails.
func (s *Service) Write(ctx context.Context, handle string, data []byte) (int, error) {
	f, err := s.file(handle)
	if err != nil {
		return 0, err
	}

	written := 0
	for written < len(data) {
		n, err := f.Write(ctx, data[written:])
		written += n
		if err != nil {
			return written, fmt.Errorf("write %s: %w", f.Dev.Name, err)
		}
	}
	return written, nil
}

func (s *Service) Seek(ctx context.Context, handle string, off int64, whence int) (int64, error) {
	f, err := s.file(handle)
	if err != nil {
		return 0, err
	}
	return f.Seek(ctx, off, whence)
}

func (s *Service) Release(ctx context.Context, handle string) error {
	h, err := ids.ParseHandle(handle)
	if err != nil {
		return fmt.Errorf("%w: %s", device.ErrHandleNotFound, handle)
	}
	return s.deviceMgr.Release(h)
}

func (s *Service) Truncate(ctx context.Context, deviceID uint64) error {
	dev, err := s.deviceMgr.Lookup(ids.DeviceID(deviceID))
	if err != nil {
		return err
	}

	if err := dev.Store.Truncate(ctx); err != nil {
		return fmt.Errorf("truncate %s: %w", dev.Name, err)
	}
	slog.Info("Truncated device", "device", dev.Name)
	return nil
}

// Shutdown empties every device and closes the snapshot store.
func (s *Service) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.deviceMgr.Teardown(ctx); err != nil {
		slog.Error("Failed to tear down devices", "error", err)
		errs = append(errs, err)
	}
	if s.snapshots != nil {
		if err := s.snapshots.Close(); err != nil {
			slog.Error("Failed to close snapshot store", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) file(handle string) (*device.File, error) {
	h, err := ids.ParseHandle(handle)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", device.ErrHandleNotFound, handle)
	}
	return s.deviceMgr.File(h)
}
