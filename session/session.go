// Package session provides the session-scoped string key-value store that job
// metadata survives a restart in. A session models one browser tab: values
// persist across reloads of the same session and are discarded by Purge.
package session

import (
	"sync"

	"github.com/google/uuid"
)

// KV is a session-scoped string key-value store
type KV interface {
	// Get returns the value for key; ok is false when absent.
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error
}

// NewID returns a fresh random session id
func NewID() string {
	return uuid.NewString()
}

// Memory is an in-process KV. It does not survive a restart.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Len returns the number of stored keys
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

// Purge drops every value
func (m *Memory) Purge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string]string)
}
