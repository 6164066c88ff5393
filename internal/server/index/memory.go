package index

import (
	"context"
	"sync"

	"github.com/newwaysadmin/slipsync/internal/server/models"
	"github.com/newwaysadmin/slipsync/internal/server/storage"
)

// Memory is an in-process index that lazily rebuilds itself from the
// document store on first use and is kept current by Upsert afterwards.
type Memory struct {
	store storage.DocumentStore

	mu      sync.RWMutex
	loaded  bool
	entries map[string]models.MetadataEntry
}

func NewMemory(store storage.DocumentStore) *Memory {
	return &Memory{
		store:   store,
		entries: make(map[string]models.MetadataEntry),
	}
}

func (m *Memory) ensureLoaded(ctx context.Context) error {
	m.mu.RLock()
	loaded := m.loaded
	m.mu.RUnlock()
	if loaded {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return nil
	}
	if _, err := Rebuild(ctx, m.store, unlockedMemory{m}); err != nil {
		return err
	}
	m.loaded = true
	return nil
}

func (m *Memory) List(ctx context.Context) ([]models.MetadataEntry, error) {
	if err := m.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.MetadataEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out, nil
}

func (m *Memory) Upsert(ctx context.Context, e models.MetadataEntry) error {
	if err := m.ensureLoaded(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e
	return nil
}

// unlockedMemory lets Rebuild write entries while ensureLoaded already holds
// the write lock.
type unlockedMemory struct{ m *Memory }

func (u unlockedMemory) List(ctx context.Context) ([]models.MetadataEntry, error) { return nil, nil }

func (u unlockedMemory) Upsert(ctx context.Context, e models.MetadataEntry) error {
	u.m.entries[e.ID] = e
	return nil
}
