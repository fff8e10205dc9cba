// Package memory provides an in-process LocalStore.
package memory

import (
	"context"
	"sync"
)

// Store implements ports.LocalStore with a map. Values are lost on exit.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{values: make(map[string]string)}
}

// Get returns the value stored under key.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set stores value under key.
func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
