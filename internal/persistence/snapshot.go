package persistence

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/golang/snappy"
	"github.com/sekai02/scull/internal/storage"
)

var (
	ErrSnapshotNotFound = errors.New("persistence: snapshot not found")
	ErrConfigMismatch   = errors.New("persistence: quantum size mismatch")
	ErrBadName          = errors.New("persistence: bad snapshot name")
)

// Snapshotter saves and restores device contents on request. Devices stay
// volatile; nothing is written unless Save is called.
type Snapshotter struct {
	db *badger.DB
	mu sync.Mutex
}

// Open uses dir as the badger directory, or keeps everything in memory when dir is empty.
func Open(dir string) (*Snapshotter, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Snapshotter{db: db}, nil
}

func (s *Snapshotter) Close() error {
	return s.db.Close()
}

// Save replaces the snapshot called name with the store's current contents.
// Only allocated quanta are written, so holes survive a round trip. The
// previous snapshot stays intact until the new one has been flushed.
func (s *Snapshotter) Save(ctx context.Context, name string, st *storage.Store) (Manifest, error) {
	if err := checkName(name); err != nil {
		return Manifest{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous, err := s.keys(snapPrefix(name))
	if err != nil {
		return Manifest{}, fmt.Errorf("list snapshot %s: %w", name, err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	written := make(map[string]struct{})
	stats, err := st.Walk(ctx, func(off int64, q []byte) error {
		key := quantumKey(name, off)
		written[string(key)] = struct{}{}
		return wb.Set(key, snappy.Encode(nil, q))
	})
	if err != nil {
		return Manifest{}, fmt.Errorf("write quanta: %w", err)
	}

	m := Manifest{
		Name:    name,
		Quantum: stats.Quantum,
		Qset:    stats.Qset,
		Size:    stats.Size,
		Quanta:  stats.Quanta,
		Created: time.Now().UTC(),
	}
	data, err := encodeManifest(m)
	if err != nil {
		return Manifest{}, err
	}
	key := metaKey(name)
	written[string(key)] = struct{}{}
	if err := wb.Set(key, data); err != nil {
		return Manifest{}, err
	}

	if err := wb.Flush(); err != nil {
		return Manifest{}, fmt.Errorf("flush snapshot %s: %w", name, err)
	}

	var stale [][]byte
	for _, key := range previous {
		if _, ok := written[string(key)]; !ok {
			stale = append(stale, key)
		}
	}
	if err := s.deleteKeys(stale); err != nil {
		return Manifest{}, fmt.Errorf("drop stale quanta of %s: %w", name, err)
	}
	return m, nil
}

type savedQuantum struct {
	off  int64
	data []byte
}

// Load empties st and refills it from the snapshot called name. Every
// quantum is decoded before st is touched, so a damaged snapshot leaves st
// as it was. A write failure during the refill, such as ErrOutOfMemory,
// leaves st partially restored.
func (s *Snapshotter) Load(ctx context.Context, name string, st *storage.Store) (Manifest, error) {
	if err := checkName(name); err != nil {
		return Manifest{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.manifest(name)
	if err != nil {
		return Manifest{}, err
	}
	if cfg := st.Config(); cfg.Quantum != m.Quantum {
		return Manifest{}, fmt.Errorf("%w: snapshot %d, store %d", ErrConfigMismatch, m.Quantum, cfg.Quantum)
	}

	var quanta []savedQuantum
	prefix := quantumPrefix(name)
	err = s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			off := int64(binary.BigEndian.Uint64(item.Key()[len(prefix):]))

			err := item.Value(func(val []byte) error {
				q, err := snappy.Decode(nil, val)
				if err != nil {
					return fmt.Errorf("decode quantum at %d: %w", off, err)
				}
				if len(q) != m.Quantum {
					return fmt.Errorf("quantum at %d has %d bytes, want %d", off, len(q), m.Quantum)
				}
				if rest := m.Size - off; rest < int64(len(q)) {
					q = q[:max(rest, 0)]
				}
				quanta = append(quanta, savedQuantum{off: off, data: q})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Manifest{}, fmt.Errorf("read snapshot %s: %w", name, err)
	}

	if err := st.Truncate(ctx); err != nil {
		return Manifest{}, err
	}
	for _, q := range quanta {
		if err := writeFull(ctx, st, q.off, q.data); err != nil {
			return Manifest{}, fmt.Errorf("restore snapshot %s at %d: %w", name, q.off, err)
		}
	}
	return m, nil
}

func (s *Snapshotter) List() ([]Manifest, error) {
	var result []Manifest
	prefix := []byte("snap/")

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if !bytes.HasSuffix(item.Key(), []byte("/meta")) {
				continue
			}
			err := item.Value(func(val []byte) error {
				m, err := decodeManifest(val)
				if err != nil {
					return err
				}
				result = append(result, m)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return result, err
}

func (s *Snapshotter) Delete(name string) error {
	if err := checkName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.manifest(name); err != nil {
		return err
	}
	return s.deletePrefix(snapPrefix(name))
}

func (s *Snapshotter) deletePrefix(prefix []byte) error {
	keys, err := s.keys(prefix)
	if err != nil {
		return err
	}
	return s.deleteKeys(keys)
}

func (s *Snapshotter) keys(prefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

func (s *Snapshotter) deleteKeys(keys [][]byte) error {
	if len(keys) == 0 {
		return nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func (s *Snapshotter) manifest(name string) (Manifest, error) {
	var m Manifest
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			m, err = decodeManifest(val)
			return err
		})
	})
	return m, err
}

func writeFull(ctx context.Context, st *storage.Store, off int64, p []byte) error {
	for len(p) > 0 {
		n, err := st.Write(ctx, p, off)
		if err != nil {
			return err
		}
		p = p[n:]
		off += int64(n)
	}
	return nil
}

func checkName(name string) error {
	if name == "" || strings.ContainsRune(name, '/') {
		return fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return nil
}

func snapPrefix(name string) []byte {
	return []byte("snap/" + name + "/")
}

func metaKey(name string) []byte {
	return append(snapPrefix(name), "meta"...)
}

func quantumPrefix(name string) []byte {
	return append(snapPrefix(name), "q/"...)
}

func quantumKey(name string, off int64) []byte {
	key := quantumPrefix(name)
	return binary.BigEndian.AppendUint64(key, uint64(off))
}
