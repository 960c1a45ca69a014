// Package orderedstore provides a concurrent, order-preserving associative
// store keyed by any ordered type. It generalizes the pattern used by the
// process table (keys are PIDs) and VFS directory children (keys are names)
// into a single reusable primitive: deterministic ascending iteration, O(1)
// point lookups, and RWMutex-guarded concurrent access.
package orderedstore

import (
	"sort"
	"sync"
)

// Store is a concurrent, in-memory key/value store indexed by K, with
// deterministic ascending iteration over K.
//
// Concurrency: per-store write serialization via exclusive lock; concurrent
// reads via shared lock. Values are stored as provided, without deep
// copying — pointer values remain live references visible to readers.
type Store[K cmp, V any] struct {
	mu   sync.RWMutex
	keys []K
	vals []V
	pos  map[K]int
}

// cmp is the minimal ordering constraint needed for binary search over keys.
type cmp interface {
	~string | ~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64
}

// New constructs a ready-to-use Store.
func New[K cmp, V any]() *Store[K, V] {
	return &Store[K, V]{
		pos: make(map[K]int),
	}
}

// Upsert inserts or overwrites the value at key.
//
// Time: O(1) for overwrite or append-at-end; O(n) for a general mid-slice
// insert (binary search + shift).
func (s *Store[K, V]) Upsert(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, exists := s.pos[key]; exists {
		s.vals[idx] = value
		return
	}

	if n := len(s.keys); n == 0 || key > s.keys[n-1] {
		s.keys = append(s.keys, key)
		s.vals = append(s.vals, value)
		s.pos[key] = len(s.keys) - 1
		return
	}

	insertIdx := sort.Search(len(s.keys), func(i int) bool { return s.keys[i] >= key })

	s.keys = append(s.keys, *new(K))
	copy(s.keys[insertIdx+1:], s.keys[insertIdx:])
	s.keys[insertIdx] = key

	s.vals = append(s.vals, *new(V))
	copy(s.vals[insertIdx+1:], s.vals[insertIdx:])
	s.vals[insertIdx] = value

	for i := insertIdx; i < len(s.keys); i++ {
		s.pos[s.keys[i]] = i
	}
}

// Delete removes key if present; idempotent.
func (s *Store[K, V]) Delete(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.pos[key]
	if !ok {
		return
	}

	delete(s.pos, key)

	copy(s.keys[idx:], s.keys[idx+1:])
	s.keys = s.keys[:len(s.keys)-1]

	copy(s.vals[idx:], s.vals[idx+1:])
	s.vals = s.vals[:len(s.vals)-1]

	for i := idx; i < len(s.keys); i++ {
		s.pos[s.keys[i]] = i
	}
}

// Get returns (value, ok) for key. Read path uses a shared lock.
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.pos[key]
	if !ok {
		var zero V
		return zero, false
	}
	return s.vals[idx], true
}

// Len returns the number of entries currently stored.
func (s *Store[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// List returns (keys, values) in ascending key order; both are copies safe
// for the caller to retain or mutate.
func (s *Store[K, V]) List() ([]K, []V) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.keys) == 0 {
		return []K{}, []V{}
	}

	keysOut := make([]K, len(s.keys))
	copy(keysOut, s.keys)
	valsOut := make([]V, len(s.vals))
	copy(valsOut, s.vals)
	return keysOut, valsOut
}

// Range calls fn for every entry in ascending key order, stopping early if
// fn returns false. fn is called without holding the store's lock.
func (s *Store[K, V]) Range(fn func(key K, value V) bool) {
	keys, vals := s.List()
	for i, k := range keys {
		if !fn(k, vals[i]) {
			return
		}
	}
}
