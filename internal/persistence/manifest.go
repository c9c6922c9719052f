package persistence

import (
	"encoding/json"
	"fmt"
	"time"
)

// Manifest describes one saved snapshot.
type Manifest struct {
	Name    string
	Quantum int
	Qset    int
	Size    int64
	Quanta  int
	Created time.Time
}

func encodeManifest(m Manifest) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}

func decodeManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return m, nil
}
