package device

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sekai02/scull/internal/ids"
	"github.com/sekai02/scull/internal/storage"
	"github.com/sekai02/scull/internal/sys"
)

// Device is one registered store.
type Device struct {
	ID    ids.DeviceID
	Name  string
	Store *storage.Store
}

// Manager owns every device and every open handle. Its lock guards the
// registries only and is never held while a store operation runs.
type Manager struct {
	mu      sync.RWMutex
	devices map[ids.DeviceID]*Device
	names   map[string]ids.DeviceID
	handles map[ids.HandleID]*File
	idGen   *ids.Generator
	cfg     storage.Config
	alloc   storage.Allocator
}

func NewManager(idGen *ids.Generator, cfg storage.Config, alloc storage.Allocator) *Manager {
	return &Manager{
		devices: make(map[ids.DeviceID]*Device),
		names:   make(map[string]ids.DeviceID),
		handles: make(map[ids.HandleID]*File),
		idGen:   idGen,
		cfg:     cfg,
		alloc:   alloc,
	}
}

// Register creates a device backed by a fresh store. Registering a name
// twice returns the existing device.
func (m *Manager) Register(name string) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, exists := m.names[name]; exists {
		return m.devices[id], nil
	}

	var opts []storage.Option
	if m.alloc != nil {
		opts = append(opts, storage.WithAllocator(m.alloc))
	}
	store, err := storage.New(m.cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("create store for %s: %w", name, err)
	}

	dev := &Device{
		ID:    m.idGen.NextDevice(),
		Name:  name,
		Store: store,
	}
	m.devices[dev.ID] = dev
	m.names[name] = dev.ID
	return dev, nil
}

// Setup registers scull0 through scull{n-1}.
func (m *Manager) Setup(n int) ([]*Device, error) {
	if n <= 0 {
		n = sys.DeviceCount
	}

	result := make([]*Device, 0, n)
	for i := 0; i < n; i++ {
		dev, err := m.Register(fmt.Sprintf("%s%d", sys.DeviceName, i))
		if err != nil {
			return nil, err
		}
		result = append(result, dev)
	}
	return result, nil
}

func (m *Manager) List() []*Device {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Device, 0, len(m.devices))
	for _, dev := range m.devices {
		result = append(result, dev)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *Manager) Lookup(id ids.DeviceID) (*Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dev, exists := m.devices[id]
	if !exists {
		return nil, fmt.Errorf("%w: %d", ErrDeviceNotFound, id)
	}
	return dev, nil
}

// Open hands out a new file positioned at offset zero. Opening write-only
// empties the device first.
func (m *Manager) Open(ctx context.Context, id ids.DeviceID, flags Flags) (*File, error) {
	if !flags.valid() {
		return nil, fmt.Errorf("%w: %d", ErrBadMode, flags)
	}

	dev, err := m.Lookup(id)
	if err != nil {
		return nil, err
	}

	if flags == WriteOnly {
		if err := dev.Store.Truncate(ctx); err != nil {
			return nil, fmt.Errorf("truncate %s: %w", dev.Name, err)
		}
	}

	f := &File{
		ID:    m.idGen.NextHandle(),
		Dev:   dev,
		Flags: flags,
	}

	m.mu.Lock()
	m.handles[f.ID] = f
	m.mu.Unlock()

	return f, nil
}

func (m *Manager) File(h ids.HandleID) (*File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, exists := m.handles[h]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrHandleNotFound, h)
	}
	return f, nil
}

// Release forgets the handle. The device contents are untouched.
func (m *Manager) Release(h ids.HandleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.handles[h]; !exists {
		return fmt.Errorf("%w: %s", ErrHandleNotFound, h)
	}
	delete(m.handles, h)
	return nil
}

func (m *Manager) OpenHandles() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.handles)
}

// Teardown drops every handle and empties every device.
func (m *Manager) Teardown(ctx context.Context) error {
	m.mu.Lock()
	m.handles = make(map[ids.HandleID]*File)
	m.mu.Unlock()

	var errs []error
	for _, dev := range m.List() {
		if err := dev.Store.Truncate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("truncate %s: %w", dev.Name, err))
		}
	}
	return errors.Join(errs...)
}
