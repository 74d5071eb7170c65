package store

import (
	"context"
	"sync"
)

type memoryStorage struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryStorage returns a LocalStorage that lives only as long as the process
func NewMemoryStorage() LocalStorage {
	return &memoryStorage{items: make(map[string]string)}
}

func (m *memoryStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *memoryStorage) SetItem(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.items[key] = value
	m.mu.Unlock()
	return nil
}

type unavailableStorage struct{}

// UnavailableStorage stands in for hosts without persistent storage.
// Reads report nothing stored and writes are discarded.
func UnavailableStorage() LocalStorage {
	return unavailableStorage{}
}

func (unavailableStorage) GetItem(context.Context, string) (string, bool, error) {
	return "", false, nil
}

func (unavailableStorage) SetItem(context.Context, string, string) error {
	return nil
}

// IsUnavailable reports whether s is the no-op storage
func IsUnavailable(s LocalStorage) bool {
	_, ok := s.(unavailableStorage)
	return s == nil || ok
}
