package jobs

import (
	"context"
	"sync"
)

// RunStore keeps the last report of every job.
type RunStore interface {
	Save(ctx context.Context, r Report) error
	Last(ctx context.Context, job string) (Report, bool, error)
}

type MemoryRunStore struct {
	mu   sync.RWMutex
	last map[string]Report
}

func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{last: make(map[string]Report)}
}

func (s *MemoryRunStore) Save(_ context.Context, r Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[r.Job] = r
	return nil
}

func (s *MemoryRunStore) Last(_ context.Context, job string) (Report, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.last[job]
	return r, ok, nil
}
