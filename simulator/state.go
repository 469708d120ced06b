package simulator

import "sync"

// StateStore keeps one kind of simulated resource keyed by name or ID.
// It is safe for concurrent use by request handlers.
type StateStore[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

func NewStateStore[T any]() *StateStore[T] {
	return &StateStore[T]{items: make(map[string]T)}
}

func (s *StateStore[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

func (s *StateStore[T]) Put(key string, item T) {
	s.mu.Lock()
	s.items[key] = item
	s.mu.Unlock()
}

// Update applies fn to the stored value under the write lock. It reports
// false, without calling fn, when key is absent.
func (s *StateStore[T]) Update(key string, fn func(*T)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	if !ok {
		return false
	}
	fn(&v)
	s.items[key] = v
	return true
}
