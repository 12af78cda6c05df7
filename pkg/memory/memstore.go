package memory

import (
	"context"
	"strings"
	"sync"
)

// MemStore is an in-memory implementation of convergence.MemoryRepository,
// the default backend for tests and the demo cmd/abathur wiring (matching
// gomind's InMemoryStore, without the TTL expiry gomind's version adds —
// bandit/recall state here is process-lifetime, not cache-lifetime).
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

func (m *MemStore) Store(ctx context.Context, namespace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[buildKey(namespace, key)] = cp
	return nil
}

func (m *MemStore) Retrieve(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[buildKey(namespace, key)]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true, nil
}

func (m *MemStore) Delete(ctx context.Context, namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, buildKey(namespace, key))
	return nil
}

func (m *MemStore) List(ctx context.Context, namespace string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := namespace + ":"
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k[len(prefix):])
		}
	}
	return keys, nil
}
