package tree

import (
	"math"

	"github.com/benz9527/rbkv/lib/infra"
)

// nodeIdx addresses a slot of the arena. Slot 0 is the sentinel.
type nodeIdx uint32

const (
	nilIdx          nodeIdx = 0
	rbArenaMaxSlots         = uint64(math.MaxUint32)
)

type rbNode[K infra.OrderedKey, V comparable] struct {
	key    K
	val    V
	parent nodeIdx
	left   nodeIdx
	right  nodeIdx
	color  RBColor
}

// rbArena keeps every node of one tree in a single growable table.
// Removed slots are recycled before the table grows again.
// The addresses returned by slot() are only stable until the next allocate().
type rbArena[K infra.OrderedKey, V comparable] struct {
	slots    []rbNode[K, V]
	recycled []nodeIdx
	maxSlots uint64 // sentinel included
}

func (arena *rbArena[K, V]) slot(idx nodeIdx) *rbNode[K, V] {
	return &arena.slots[idx]
}

func (arena *rbArena[K, V]) allocate() (nodeIdx, bool) {
	if rl := len(arena.recycled); rl > 0 {
		idx := arena.recycled[rl-1]
		arena.recycled = arena.recycled[:rl-1]
		return idx, true
	}
	if uint64(len(arena.slots)) >= arena.maxSlots {
		return nilIdx, false
	}
	arena.slots = append(arena.slots, rbNode[K, V]{})
	return nodeIdx(len(arena.slots) - 1), true
}

func (arena *rbArena[K, V]) recycle(idx nodeIdx) {
	if idx == nilIdx {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] recycle the sentinel slot")
	}
	arena.slots[idx] = rbNode[K, V]{}
	arena.recycled = append(arena.recycled, idx)
}

// live returns the number of slots holding a real node.
func (arena *rbArena[K, V]) live() int {
	return len(arena.slots) - 1 - len(arena.recycled)
}

func (arena *rbArena[K, V]) reset() {
	clear(arena.slots[1:])
	arena.slots = arena.slots[:1]
	arena.recycled = arena.recycled[:0]
}

func newRBArena[K infra.OrderedKey, V comparable](initCap uint32) *rbArena[K, V] {
	slots := make([]rbNode[K, V], 1, uint64(initCap)+1)
	slots[nilIdx] = rbNode[K, V]{
		parent: nilIdx,
		left:   nilIdx,
		right:  nilIdx,
		color:  Black,
	}
	return &rbArena[K, V]{
		slots:    slots,
		recycled: make([]nodeIdx, 0, 16),
		maxSlots: rbArenaMaxSlots,
	}
}
