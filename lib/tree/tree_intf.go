package tree

import (
	"iter"

	"github.com/benz9527/rbkv/lib/infra"
)

// go install golang.org/x/tools/cmd/stringer@latest

//go:generate stringer -type=RBColor
type RBColor uint8

const (
	Black RBColor = iota
	Red
)

//go:generate stringer -type=RBDirection
type RBDirection int8

const (
	Left RBDirection = -1 + iota
	Root
	Right
)

// RBNode is a read-only view of a tree slot.
// The view of the sentinel reports IsNil() true and zero key and value.
type RBNode[K infra.OrderedKey, V comparable] interface {
	Key() K
	Val() V
	Color() RBColor
	IsNil() bool
	Left() RBNode[K, V]
	Right() RBNode[K, V]
	Parent() RBNode[K, V]
}

// TraverseItem is one step of the diagnostic traversal.
// Depth of the root is 0.
type TraverseItem[K infra.OrderedKey, V comparable] struct {
	Key   K
	Val   V
	Depth int
	Color RBColor
}

// RBMultiMap is an ordered index that keeps every inserted (key, val) pair,
// duplicate keys included. Entries sharing a key form a contiguous run in
// the in-order sequence.
type RBMultiMap[K infra.OrderedKey, V comparable] interface {
	Len() int64
	Root() RBNode[K, V]
	// Insert never rejects a duplicate key or (key, val) pair.
	Insert(key K, val V) error
	// FindAll returns the values of the key's run in in-order layout.
	FindAll(key K) []V
	// DeleteAll removes every entry matching both key and val and
	// returns how many were removed.
	DeleteAll(key K, val V) int
	Contains(key K) bool
	Foreach(action func(idx int64, color RBColor, key K, val V) bool)
	// Traverse yields the entries in reverse in-order (right subtree first).
	Traverse() iter.Seq[TraverseItem[K, V]]
	Release()
}
