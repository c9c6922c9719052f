package ids

import (
	"sync/atomic"

	"github.com/google/uuid"
)

type DeviceID uint64

// HandleID names one open file on a device.
type HandleID string

type Generator struct {
	deviceCounter uint64
}

func NewGenerator() *Generator {
	return &Generator{deviceCounter: 0}
}

// NextDevice returns minor-style ids starting at zero.
func (g *Generator) NextDevice() DeviceID {
	return DeviceID(atomic.AddUint64(&g.deviceCounter, 1) - 1)
}

func (g *Generator) NextHandle() HandleID {
	return HandleID(uuid.New().String())
}

func ParseHandle(s string) (HandleID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return HandleID(u.String()), nil
}
