package cache

import (
	"testing"

	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types"
	"github.com/stretchr/testify/assert"
)

func Test_BoundedSlotMap(t *testing.T) {
	t.Run("Inserts each slot once", func(t *testing.T) {
		m := NewBoundedSlotMap[string](3)
		assert.True(t, m.Insert(7, "a"))
		assert.False(t, m.Insert(7, "b"))

		v, ok := m.Get(7)
		assert.True(t, ok)
		assert.Equal(t, "a", v)
		assert.Equal(t, 1, m.Len())
	})
	t.Run("Evicts the lowest slots beyond the size", func(t *testing.T) {
		m := NewBoundedSlotMap[types.Slot](20)
		for _, slot := range []types.Slot{40, 3, 17, 25, 1, 33, 9, 12, 50, 2, 8, 30, 21, 45, 5, 6, 11, 14, 19, 28, 36, 41, 47, 49, 4} {
			m.Insert(slot, slot*2)
		}
		assert.Equal(t, 20, m.Len())

		for _, slot := range []types.Slot{1, 2, 3, 4, 5} {
			_, ok := m.Get(slot)
			assert.False(t, ok, "slot %d should be evicted", slot)
		}
		v, ok := m.Get(6)
		assert.True(t, ok)
		assert.Equal(t, types.Slot(12), v)
		_, ok = m.Get(50)
		assert.True(t, ok)
	})
}
