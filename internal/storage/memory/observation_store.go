package memory

import (
	"context"
	"sort"
	"sync"

	"signal-tracker/internal/domain"
	"signal-tracker/internal/storage"
)

// ObservationStore is an in-memory implementation of storage.ObservationStore.
type ObservationStore struct {
	mu    sync.RWMutex
	data  map[string]*domain.Observation // keyed by observation id
	byRef map[string]string              // external_ref -> observation id
}

// NewObservationStore creates a new in-memory observation store.
func NewObservationStore() *ObservationStore {
	return &ObservationStore{
		data:  make(map[string]*domain.Observation),
		byRef: make(map[string]string),
	}
}

// Insert adds a new observation. Returns ErrDuplicateKey if external_ref exists.
func (s *ObservationStore) Insert(_ context.Context, o *domain.Observation) error {
	if o == nil || o.ID == "" || o.ExternalRef == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byRef[o.ExternalRef]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.data[o.ID]; exists {
		return storage.ErrDuplicateKey
	}

	obsCopy := *o
	s.data[o.ID] = &obsCopy
	s.byRef[o.ExternalRef] = o.ID
	return nil
}

// GetByEntityID retrieves all observations for an entity, ordered by timestamp ASC.
func (s *ObservationStore) GetByEntityID(_ context.Context, entityID string) ([]*domain.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Observation
	for _, o := range s.data {
		if o.EntityID == entityID {
			obsCopy := *o
			result = append(result, &obsCopy)
		}
	}

	sortObservations(result)
	return result, nil
}

// GetByTimeRange retrieves observations for an entity within [start, end] (inclusive).
func (s *ObservationStore) GetByTimeRange(_ context.Context, entityID string, start, end int64) ([]*domain.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Observation
	for _, o := range s.data {
		if o.EntityID == entityID && o.Timestamp >= start && o.Timestamp <= end {
			obsCopy := *o
			result = append(result, &obsCopy)
		}
	}

	sortObservations(result)
	return result, nil
}

// GetUnmatchedBuys retrieves unmatched BUYs for (entity, token), timestamp ASC.
func (s *ObservationStore) GetUnmatchedBuys(_ context.Context, entityID, counterpartyToken string) ([]*domain.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Observation
	for _, o := range s.data {
		if o.EntityID == entityID && o.CounterpartyToken == counterpartyToken &&
			o.Type == domain.ObservationBuy && !o.Matched {
			obsCopy := *o
			result = append(result, &obsCopy)
		}
	}

	sortObservations(result)
	return result, nil
}

// MarkMatched flags observations as consumed by the matcher.
func (s *ObservationStore) MarkMatched(_ context.Context, observationIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range observationIDs {
		o, ok := s.data[id]
		if !ok {
			return storage.ErrNotFound
		}
		o.Matched = true
	}
	return nil
}

// sortObservations orders by (timestamp ASC, id ASC) for deterministic output.
func sortObservations(obs []*domain.Observation) {
	sort.Slice(obs, func(i, j int) bool {
		if obs[i].Timestamp != obs[j].Timestamp {
			return obs[i].Timestamp < obs[j].Timestamp
		}
		return obs[i].ID < obs[j].ID
	})
}

// Verify interface compliance at compile time.
var _ storage.ObservationStore = (*ObservationStore)(nil)
