package sheet

import (
	"context"
	"sort"
	"sync"

	"github.com/gridmind/gridmind/internal/core"
)

// MemoryStore keeps snapshots in memory. Used when no store path is
// configured and in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]*core.SheetSnapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string]*core.SheetSnapshot)}
}

func (m *MemoryStore) Save(_ context.Context, snap *core.SheetSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snap.ID] = snap
	return nil
}

func (m *MemoryStore) Load(_ context.Context, id string) (*core.SheetSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snaps[id], nil
}

func (m *MemoryStore) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.snaps))
	for id := range m.snaps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, id)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
