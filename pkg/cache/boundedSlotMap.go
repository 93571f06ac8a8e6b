package cache

import (
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types"
	"github.com/google/btree"
)

type slotEntry[V any] struct {
	slot  types.Slot
	value V
}

// BoundedSlotMap keeps at most size values, dropping the lowest slot first. It is
// not safe for concurrent use.
type BoundedSlotMap[V any] struct {
	size int
	tree *btree.BTreeG[slotEntry[V]]
}

func NewBoundedSlotMap[V any](size int) *BoundedSlotMap[V] {
	return &BoundedSlotMap[V]{
		size: size,
		tree: btree.NewG(btreeDegree, func(a, b slotEntry[V]) bool {
			return a.slot < b.slot
		}),
	}
}

// Insert reports false, leaving the map untouched, if the slot is already present.
func (m *BoundedSlotMap[V]) Insert(slot types.Slot, v V) bool {
	if m.tree.Has(slotEntry[V]{slot: slot}) {
		return false
	}
	m.tree.ReplaceOrInsert(slotEntry[V]{slot: slot, value: v})
	for m.tree.Len() > m.size {
		m.tree.DeleteMin()
	}
	return true
}

func (m *BoundedSlotMap[V]) Get(slot types.Slot) (V, bool) {
	e, ok := m.tree.Get(slotEntry[V]{slot: slot})
	return e.value, ok
}

func (m *BoundedSlotMap[V]) Len() int {
	return m.tree.Len()
}
