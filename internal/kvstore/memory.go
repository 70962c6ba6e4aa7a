package kvstore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps values in process memory with an optional byte quota.
type MemoryStore struct {
	mu       sync.RWMutex
	values   map[string][]byte
	size     int64
	maxBytes int64
}

// NewMemoryStore builds a MemoryStore. maxBytes <= 0 disables the quota.
func NewMemoryStore(maxBytes int64) *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte), maxBytes: maxBytes}
}

// Get returns a copy of the stored value.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

// Set stores value, failing with ErrCapacityExceeded when the quota would be exceeded.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.size + entrySize(key, value)
	if old, ok := m.values[key]; ok {
		next -= entrySize(key, old)
	}
	if m.maxBytes > 0 && next > m.maxBytes {
		return ErrCapacityExceeded
	}
	m.values[key] = append([]byte(nil), value...)
	m.size = next
	return nil
}

// Delete removes keys; missing keys are ignored.
func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		value, ok := m.values[key]
		if !ok {
			continue
		}
		m.size -= entrySize(key, value)
		delete(m.values, key)
	}
	return nil
}

// Keys lists keys with the given prefix in lexical order.
func (m *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for key := range m.values {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Size reports the bytes currently accounted against the quota.
func (m *MemoryStore) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func entrySize(key string, value []byte) int64 {
	return int64(len(key) + len(value))
}

var _ Store = (*MemoryStore)(nil)
