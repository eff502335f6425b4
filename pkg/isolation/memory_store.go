package isolation

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is a mutex-guarded Store used by tests and single-node setups.
// Rows are cloned on the way in and out so callers never share memory with
// the stored copy.
type MemoryStore[T Row, F any] struct {
	mu    sync.RWMutex
	rows  map[uuid.UUID]T
	seq   map[uuid.UUID]uint64
	next  uint64
	clone func(T) T
	match func(T, F) bool
}

// NewMemoryStore creates a store. match decides whether a row passes a List
// filter; a nil match accepts every row.
func NewMemoryStore[T Row, F any](clone func(T) T, match func(T, F) bool) *MemoryStore[T, F] {
	if match == nil {
		match = func(T, F) bool { return true }
	}
	return &MemoryStore[T, F]{
		rows:  make(map[uuid.UUID]T),
		seq:   make(map[uuid.UUID]uint64),
		clone: clone,
		match: match,
	}
}

func (s *MemoryStore[T, F]) Get(_ context.Context, tenantID, id uuid.UUID) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[id]
	if !ok || row.GetTenantID() != tenantID {
		var zero T
		return zero, ErrNotFound
	}
	return s.clone(row), nil
}

// List returns matching rows of tenantID in insertion order.
func (s *MemoryStore[T, F]) List(_ context.Context, tenantID uuid.UUID, filter F) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, 0)
	for _, row := range s.rows {
		if row.GetTenantID() == tenantID && s.match(row, filter) {
			out = append(out, s.clone(row))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return s.seq[out[i].GetID()] < s.seq[out[j].GetID()]
	})
	return out, nil
}

func (s *MemoryStore[T, F]) Insert(_ context.Context, row T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[row.GetID()]; ok {
		return ErrDuplicate
	}
	s.next++
	s.rows[row.GetID()] = s.clone(row)
	s.seq[row.GetID()] = s.next
	return nil
}

func (s *MemoryStore[T, F]) Update(_ context.Context, tenantID, id uuid.UUID, fn func(T) (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	row, ok := s.rows[id]
	if !ok || row.GetTenantID() != tenantID {
		return zero, ErrNotFound
	}
	next, err := fn(s.clone(row))
	if err != nil {
		return zero, err
	}
	s.rows[id] = s.clone(next)
	return s.clone(next), nil
}

// Len returns the number of stored rows across all tenants.
func (s *MemoryStore[T, F]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// MemoryGlobalStore serves a fixed tenant-agnostic list.
type MemoryGlobalStore[T any] struct {
	rows []T
}

func NewMemoryGlobalStore[T any](rows ...T) *MemoryGlobalStore[T] {
	return &MemoryGlobalStore[T]{rows: rows}
}

func (s *MemoryGlobalStore[T]) List(context.Context) ([]T, error) {
	out := make([]T, len(s.rows))
	copy(out, s.rows)
	return out, nil
}
