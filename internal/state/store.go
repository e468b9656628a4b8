// Package state provides an observable value container. Every mutation goes
// through Update and every subscriber sees the value that resulted from it.
package state

import "sync"

// Store holds a value of type T. T should be a value type; slices and maps
// inside it must be treated as immutable and replaced rather than mutated.
type Store[T any] struct {
	mu     sync.RWMutex
	value  T
	nextID int
	subs   map[int]func(T)

	// notifyMu keeps notifications in update order.
	notifyMu sync.Mutex
}

// New returns a store holding initial.
func New[T any](initial T) *Store[T] {
	return &Store[T]{value: initial, subs: map[int]func(T){}}
}

// Get returns the current value.
func (s *Store[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Update applies fn to the value and notifies subscribers with the result.
func (s *Store[T]) Update(fn func(*T)) T {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	fn(&s.value)
	v := s.value
	subs := make([]func(T), 0, len(s.subs))
	for i := 0; i < s.nextID; i++ {
		if f, ok := s.subs[i]; ok {
			subs = append(subs, f)
		}
	}
	s.mu.Unlock()

	for _, f := range subs {
		f(v)
	}
	return v
}

// Subscribe registers fn and returns a function that removes it. fn runs
// synchronously after each update and must not call Update.
func (s *Store[T]) Subscribe(fn func(T)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}
