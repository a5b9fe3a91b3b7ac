package memory

import (
	"context"
	"sort"
	"sync"

	"signal-tracker/internal/domain"
	"signal-tracker/internal/storage"
)

// snapshotKey identifies one hourly bucket per entity.
type snapshotKey struct {
	entityID   string
	hourBucket int64
}

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[snapshotKey]*domain.PriceSnapshot
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[snapshotKey]*domain.PriceSnapshot),
	}
}

// Insert adds a snapshot. Returns ErrDuplicateKey if (entity, hour bucket) exists.
func (s *SnapshotStore) Insert(_ context.Context, snap *domain.PriceSnapshot) error {
	if snap == nil || snap.EntityID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := snapshotKey{snap.EntityID, snap.HourBucket}
	if _, exists := s.data[k]; exists {
		return storage.ErrDuplicateKey
	}

	snapCopy := *snap
	s.data[k] = &snapCopy
	return nil
}

// GetByEntityID retrieves all snapshots for an entity, ordered by hour bucket ASC.
func (s *SnapshotStore) GetByEntityID(_ context.Context, entityID string) ([]*domain.PriceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceSnapshot
	for _, snap := range s.data {
		if snap.EntityID == entityID {
			snapCopy := *snap
			result = append(result, &snapCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].HourBucket < result[j].HourBucket
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)
