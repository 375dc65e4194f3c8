package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestShouldFlag(t *testing.T) {
	tests := []struct {
		name    string
		ceiling float64
		total   float64
		flag    bool
	}{
		{"ceiling shrank below total", 50, 80, true},
		{"claim deleted, credits remain", 0, 30, true},
		{"total exactly at ceiling", 100, 100, false},
		{"back under after a delete", 100, 60, false},
		{"empty scope", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.flag, shouldFlag(tt.ceiling, tt.total))
		})
	}
}

func TestResolveCeiling(t *testing.T) {
	t.Run("missing referent means zero ceiling", func(t *testing.T) {
		ceiling, err := resolveCeiling(0, gorm.ErrRecordNotFound)
		require.NoError(t, err)
		assert.Equal(t, 0.0, ceiling)
	})

	t.Run("value passes through", func(t *testing.T) {
		ceiling, err := resolveCeiling(120, nil)
		require.NoError(t, err)
		assert.Equal(t, 120.0, ceiling)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		boom := errors.New("connection reset")
		_, err := resolveCeiling(0, boom)
		assert.ErrorIs(t, err, boom)
	})
}
