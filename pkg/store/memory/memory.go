// Package memory provides a process-local Store, used by tests and one-off
// CLI runs.
package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/OFFIS-RIT/stencil/pkg/store"
)

type kv struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func New() *store.KVStore {
	return store.NewKVStore(&kv{data: make(map[string][]byte)})
}

func (m *kv) Load(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

func (m *kv) Save(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	m.data[key] = bytes.Clone(value)
	m.mu.Unlock()
	return nil
}

func (m *kv) Close() error {
	return nil
}
