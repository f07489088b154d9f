package tree

import (
	"iter"
	"sync"

	"github.com/benz9527/rbkv/lib/infra"
)

var _ RBMultiMap[string, string] = (*threadSafeRBMultiMap[string, string])(nil)

// threadSafeRBMultiMap serializes the mutations of the wrapped map with one
// lock per instance. The readers share the lock.
// Foreach and Traverse hold the read lock for the whole walk, the callbacks
// must not mutate the same map.
type threadSafeRBMultiMap[K infra.OrderedKey, V comparable] struct {
	lock sync.RWMutex
	m    RBMultiMap[K, V]
}

func (t *threadSafeRBMultiMap[K, V]) Len() int64 {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.m.Len()
}

// Root returns the view of the current root. The view is not protected by
// the lock, it must not be walked while other goroutines mutate the map.
func (t *threadSafeRBMultiMap[K, V]) Root() RBNode[K, V] {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.m.Root()
}

func (t *threadSafeRBMultiMap[K, V]) Insert(key K, val V) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.m.Insert(key, val)
}

func (t *threadSafeRBMultiMap[K, V]) FindAll(key K) []V {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.m.FindAll(key)
}

func (t *threadSafeRBMultiMap[K, V]) DeleteAll(key K, val V) int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.m.DeleteAll(key, val)
}

func (t *threadSafeRBMultiMap[K, V]) Contains(key K) bool {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.m.Contains(key)
}

func (t *threadSafeRBMultiMap[K, V]) Foreach(action func(idx int64, color RBColor, key K, val V) bool) {
	t.lock.RLock()
	defer t.lock.RUnlock()
	t.m.Foreach(action)
}

func (t *threadSafeRBMultiMap[K, V]) Traverse() iter.Seq[TraverseItem[K, V]] {
	return func(yield func(TraverseItem[K, V]) bool) {
		t.lock.RLock()
		defer t.lock.RUnlock()
		t.m.Traverse()(yield)
	}
}

func (t *threadSafeRBMultiMap[K, V]) Release() {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.m.Release()
}

// NewThreadSafeRBMultiMap wraps m, or a new map built by opts if m is nil.
func NewThreadSafeRBMultiMap[K infra.OrderedKey, V comparable](m RBMultiMap[K, V], opts ...RBMultiMapOption[K, V]) RBMultiMap[K, V] {
	if m == nil {
		m = NewRBMultiMap[K, V](opts...)
	}
	return &threadSafeRBMultiMap[K, V]{m: m}
}
