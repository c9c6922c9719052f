package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocate(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		off  int64
		want Position
	}{
		{"zero", 0, Position{0, 0, 0}},
		{"inside first quantum", 2, Position{0, 0, 2}},
		{"second quantum", 4096, Position{0, 1, 0}},
		{"last byte of first item", 4_096_000 - 1, Position{0, 999, 4095}},
		{"second item", 4_096_000, Position{1, 0, 0}},
		{"deep", 3*4_096_000 + 5*4096 + 7, Position{3, 5, 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Locate(tt.off, cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.off, got.Start(cfg), "Start should invert Locate")
		})
	}
}

func TestLocate_NegativeOffset(t *testing.T) {
	_, err := Locate(-1, DefaultConfig())
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	assert.Equal(t, int64(4_096_000), DefaultConfig().ItemSize())

	require.ErrorIs(t, Config{Quantum: 0, Qset: 1}.Validate(), ErrInvalidArgument)
	require.ErrorIs(t, Config{Quantum: 1, Qset: -3}.Validate(), ErrInvalidArgument)

	_, err := New(Config{})
	require.ErrorIs(t, err, ErrInvalidArgument)
}
