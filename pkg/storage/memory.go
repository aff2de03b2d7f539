package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps workspaces in a map. Values are deep-copied on the way
// in and out so callers cannot alias stored state.
type MemoryStore struct {
	mu         sync.RWMutex
	workspaces map[string]Workspace
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{workspaces: make(map[string]Workspace)}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workspaces[id]
	if !ok {
		return nil, notFound(id)
	}
	w.Model = w.Model.Clone()
	return &w, nil
}

func (s *MemoryStore) Put(ctx context.Context, w *Workspace) error {
	if err := prepare(w); err != nil {
		return err
	}
	cp := *w
	cp.Model = w.Model.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspaces[w.ID] = cp
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.workspaces, id)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.workspaces))
	for id := range s.workspaces {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
