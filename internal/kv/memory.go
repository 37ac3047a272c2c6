package kv

import (
	"maps"
	"sync"
)

// Memory is an in-process Store. Values are copied on the way in and out.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Get implements Tx.
func (m *Memory) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return memGet(m.data, key), nil
}

// Set implements Tx.
func (m *Memory) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete implements Tx.
func (m *Memory) Delete(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// Update implements Store. fn works on a copy of the map that replaces the
// live one only when fn succeeds. fn must not call back into m.
func (m *Memory) Update(fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{data: maps.Clone(m.data)}
	if err := fn(tx); err != nil {
		return err
	}
	m.data = tx.data
	return nil
}

type memTx struct {
	data map[string][]byte
}

func (t *memTx) Get(key string) ([]byte, error) { return memGet(t.data, key), nil }

func (t *memTx) Set(key string, value []byte) error {
	t.data[key] = append([]byte(nil), value...)
	return nil
}

func (t *memTx) Delete(keys ...string) error {
	for _, k := range keys {
		delete(t.data, k)
	}
	return nil
}

func memGet(data map[string][]byte, key string) []byte {
	v, ok := data[key]
	if !ok {
		return nil
	}
	return append([]byte(nil), v...)
}
