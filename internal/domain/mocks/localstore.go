// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"
	"sync"
)

// LocalStore is a mock implementation of ports.LocalStore.
type LocalStore struct {
	Values map[string]string
	GetErr error
	SetErr error

	// BeforeSet, when set, runs at the start of every Set without holding
	// the mock's lock. Tests use it to slow down or observe writes.
	BeforeSet func(key, value string)

	// Call tracking
	GetCallCount int
	SetCallCount int
	SetKeys      []string

	mu sync.Mutex
}

// NewLocalStore creates a new mock LocalStore.
func NewLocalStore() *LocalStore {
	return &LocalStore{Values: make(map[string]string)}
}

// Get returns the stored value.
func (m *LocalStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCallCount++
	if m.GetErr != nil {
		return "", false, m.GetErr
	}
	v, ok := m.Values[key]
	return v, ok, nil
}

// Set stores the value.
func (m *LocalStore) Set(_ context.Context, key, value string) error {
	if m.BeforeSet != nil {
		m.BeforeSet(key, value)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.SetCallCount++
	m.SetKeys = append(m.SetKeys, key)
	if m.SetErr != nil {
		return m.SetErr
	}
	if m.Values == nil {
		m.Values = make(map[string]string)
	}
	m.Values[key] = value
	return nil
}

// Value returns the stored value without counting a call.
func (m *LocalStore) Value(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.Values[key]
	return v, ok
}

// SetCalls returns the number of Set calls so far.
func (m *LocalStore) SetCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SetCallCount
}
