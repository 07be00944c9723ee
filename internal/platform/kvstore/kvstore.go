// Package kvstore provides the workspace-scoped key/value storage that backs
// every persisted client edit: custom operations, doctor-operation links, call
// notes, meta tags and product lists. Values are opaque JSON documents stored
// whole under a single string key; callers read, modify and write them back.
//
// Three backends are available: an in-process map, a PostgreSQL table and
// Redis. All of them implement Store.
package kvstore

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned by Get when the key has never been written or was
// removed.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is a flat key/value storage backend.
type Store interface {
	// Get returns the value stored under key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// SetMany stores every entry atomically: either all keys are written or
	// none are.
	SetMany(ctx context.Context, entries map[string][]byte) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// Memory is a Store held entirely in process memory.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) SetMany(_ context.Context, entries map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range entries {
		m.data[k] = append([]byte(nil), v...)
	}
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) Close() error { return nil }

// Keys returns every stored key in sorted order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
