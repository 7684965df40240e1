// Package cache memoizes best-surface results by exact coordinate pair.
package cache

import (
	"container/list"
	"slices"
	"sync"

	"github.com/sells-group/solar-cli/internal/model"
)

// Store holds best-surface results keyed by exact coordinates. Implementations
// must be safe for concurrent use.
type Store interface {
	Get(key model.Coordinates) (model.BestSurface, bool)
	Put(key model.Coordinates, value model.BestSurface)
	Len() int
}

// NewStore returns an unbounded MapStore when maxEntries is 0 and an
// LRUStore holding at most maxEntries results otherwise.
func NewStore(maxEntries int) Store {
	if maxEntries > 0 {
		return NewLRUStore(maxEntries)
	}
	return NewMapStore()
}

// MapStore is an unbounded mutex-guarded map. Entries live for the life of
// the process.
type MapStore struct {
	mu      sync.RWMutex
	entries map[model.Coordinates]model.BestSurface
}

// NewMapStore creates an empty MapStore.
func NewMapStore() *MapStore {
	return &MapStore{entries: make(map[model.Coordinates]model.BestSurface)}
}

// Get implements Store.
func (s *MapStore) Get(key model.Coordinates) (model.BestSurface, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return clone(v), ok
}

// Put implements Store.
func (s *MapStore) Put(key model.Coordinates, value model.BestSurface) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = clone(value)
}

// Len implements Store.
func (s *MapStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// LRUStore is a bounded store that evicts the least recently used entry.
type LRUStore struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[model.Coordinates]*list.Element
	order      *list.List // front = most recently used
}

type lruEntry struct {
	key   model.Coordinates
	value model.BestSurface
}

// NewLRUStore creates an LRUStore holding at most maxEntries results.
func NewLRUStore(maxEntries int) *LRUStore {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &LRUStore{
		maxEntries: maxEntries,
		entries:    make(map[model.Coordinates]*list.Element),
		order:      list.New(),
	}
}

// Get implements Store.
func (s *LRUStore) Get(key model.Coordinates) (model.BestSurface, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		return model.BestSurface{}, false
	}
	s.order.MoveToFront(el)
	return clone(el.Value.(*lruEntry).value), true
}

// Put implements Store.
func (s *LRUStore) Put(key model.Coordinates, value model.BestSurface) {
	value = clone(value)
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		el.Value.(*lruEntry).value = value
		s.order.MoveToFront(el)
		return
	}

	s.entries[key] = s.order.PushFront(&lruEntry{key: key, value: value})
	if s.order.Len() > s.maxEntries {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.entries, oldest.Value.(*lruEntry).key)
	}
}

// Len implements Store.
func (s *LRUStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// clone copies the slice and pointer fields of v so callers never share
// memory with a stored entry.
func clone(v model.BestSurface) model.BestSurface {
	v.Surface.MonthlyYieldKWh = slices.Clone(v.Surface.MonthlyYieldKWh)
	if v.Surface.Center != nil {
		c := *v.Surface.Center
		v.Surface.Center = &c
	}
	return v
}
