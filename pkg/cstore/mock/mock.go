// Package mock is an in-memory cstore.Backend for tests, local development
// and the sandbox server.
package mock

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/iota-pico/iota-pico-storage-sub001/pkg/cstore"
)

var _ cstore.Backend = (*Mock)(nil)

type entry struct {
	data []byte
	etag string
}

// Mock keeps documents in memory. Like the remote store it never forgets a
// key: a deleted key holds a JSON null.
type Mock struct {
	mu    sync.RWMutex
	items map[string]entry
}

// New returns an empty Mock.
func New() *Mock {
	return &Mock{items: make(map[string]entry)}
}

// GetRaw returns a copy of the document at key, or nil when it was never written.
func (m *Mock) GetRaw(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(key) == "" {
		return nil, cstore.ErrKeyRequired
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.items[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), e.data...), nil
}

// PutRaw stores raw under key with a fresh ETag.
func (m *Mock) PutRaw(ctx context.Context, key string, raw []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(key) == "" {
		return "", cstore.ErrKeyRequired
	}
	e := entry{data: append([]byte(nil), raw...), etag: uuid.NewString()}
	m.mu.Lock()
	m.items[key] = e
	m.mu.Unlock()
	return e.etag, nil
}

// ListKeys returns every key written so far, sorted.
func (m *Mock) ListKeys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	m.mu.RUnlock()
	sort.Strings(keys)
	return keys, nil
}

// ETag returns the current ETag of key, or "" when it was never written.
func (m *Mock) ETag(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.items[key].etag
}

// Len returns the number of keys held, tombstones included.
func (m *Mock) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
