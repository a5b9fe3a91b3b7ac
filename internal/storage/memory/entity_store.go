// Package memory provides in-memory storage implementations used by tests
// and the storage.use_memory server mode. All stores are safe for concurrent
// use and return copies to prevent external mutation.
package memory

import (
	"context"
	"sort"
	"sync"

	"signal-tracker/internal/domain"
	"signal-tracker/internal/storage"
)

// EntityStore is an in-memory implementation of storage.EntityStore.
type EntityStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TrackedEntity // keyed by entity id
}

// NewEntityStore creates a new in-memory entity store.
func NewEntityStore() *EntityStore {
	return &EntityStore{
		data: make(map[string]*domain.TrackedEntity),
	}
}

// Upsert inserts the entity or refreshes last_observed_at on an existing row.
func (s *EntityStore) Upsert(_ context.Context, e *domain.TrackedEntity) (*domain.TrackedEntity, error) {
	if e == nil || e.ID == "" || e.Key == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.data[e.ID]; ok {
		if e.LastObservedAt > existing.LastObservedAt {
			existing.LastObservedAt = e.LastObservedAt
		}
		entityCopy := *existing
		return &entityCopy, nil
	}

	entityCopy := *e
	s.data[e.ID] = &entityCopy
	result := entityCopy
	return &result, nil
}

// GetByID retrieves an entity by its ID. Returns ErrNotFound if not exists.
func (s *EntityStore) GetByID(_ context.Context, entityID string) (*domain.TrackedEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[entityID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	entityCopy := *e
	return &entityCopy, nil
}

// GetByKey retrieves an entity by (kind, key). Returns ErrNotFound if not exists.
func (s *EntityStore) GetByKey(_ context.Context, kind domain.EntityKind, key string) (*domain.TrackedEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.data {
		if e.Kind == kind && e.Key == key {
			entityCopy := *e
			return &entityCopy, nil
		}
	}
	return nil, storage.ErrNotFound
}

// GetByStatus retrieves all entities of a kind in the given status.
func (s *EntityStore) GetByStatus(_ context.Context, kind domain.EntityKind, status domain.EntityStatus) ([]*domain.TrackedEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TrackedEntity
	for _, e := range s.data {
		if e.Kind == kind && e.Status == status {
			entityCopy := *e
			result = append(result, &entityCopy)
		}
	}

	// Sort by created_at ASC
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// UpdateStatus transitions an entity while its current status is non-terminal.
func (s *EntityStore) UpdateStatus(_ context.Context, entityID string, status domain.EntityStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[entityID]
	if !ok || e.Status.IsTerminal() {
		return storage.ErrNotFound
	}

	e.Status = status
	return nil
}

// StatusCounts returns entity counts per status for a kind.
func (s *EntityStore) StatusCounts(_ context.Context, kind domain.EntityKind) (map[domain.EntityStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.EntityStatus]int64)
	for _, e := range s.data {
		if e.Kind == kind {
			counts[e.Status]++
		}
	}
	return counts, nil
}

// Verify interface compliance at compile time.
var _ storage.EntityStore = (*EntityStore)(nil)
