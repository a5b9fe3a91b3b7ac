package memory

import (
	"context"
	"sort"
	"sync"

	"signal-tracker/internal/domain"
	"signal-tracker/internal/storage"
)

// EvaluationStore is an in-memory implementation of storage.EvaluationStore.
type EvaluationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.EvaluationResult // keyed by result id
}

// NewEvaluationStore creates a new in-memory evaluation store.
func NewEvaluationStore() *EvaluationStore {
	return &EvaluationStore{
		data: make(map[string]*domain.EvaluationResult),
	}
}

// Insert appends an evaluation result. Returns ErrDuplicateKey if the id exists.
func (s *EvaluationStore) Insert(_ context.Context, r *domain.EvaluationResult) error {
	if r == nil || r.ID == "" || r.EntityID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ID]; exists {
		return storage.ErrDuplicateKey
	}

	resultCopy := *r
	s.data[r.ID] = &resultCopy
	return nil
}

// GetByEntityID retrieves the evaluation history for an entity, timestamp ASC.
func (s *EvaluationStore) GetByEntityID(_ context.Context, entityID string) ([]*domain.EvaluationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EvaluationResult
	for _, r := range s.data {
		if r.EntityID == entityID {
			resultCopy := *r
			result = append(result, &resultCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.EvaluationStore = (*EvaluationStore)(nil)
