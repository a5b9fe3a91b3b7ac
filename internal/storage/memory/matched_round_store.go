package memory

import (
	"context"
	"sort"
	"sync"

	"signal-tracker/internal/domain"
	"signal-tracker/internal/storage"
)

// MatchedRoundStore is an in-memory implementation of storage.MatchedRoundStore.
type MatchedRoundStore struct {
	mu   sync.RWMutex
	data map[string]*domain.MatchedRound // keyed by round id
}

// NewMatchedRoundStore creates a new in-memory matched round store.
func NewMatchedRoundStore() *MatchedRoundStore {
	return &MatchedRoundStore{
		data: make(map[string]*domain.MatchedRound),
	}
}

// Insert adds a new round. Returns ErrDuplicateKey if the round exists.
func (s *MatchedRoundStore) Insert(_ context.Context, r *domain.MatchedRound) error {
	if r == nil || r.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ID]; exists {
		return storage.ErrDuplicateKey
	}

	roundCopy := *r
	s.data[r.ID] = &roundCopy
	return nil
}

// GetByEntityID retrieves all rounds for an entity, ordered by exit timestamp ASC.
func (s *MatchedRoundStore) GetByEntityID(_ context.Context, entityID string) ([]*domain.MatchedRound, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MatchedRound
	for _, r := range s.data {
		if r.EntityID == entityID {
			roundCopy := *r
			result = append(result, &roundCopy)
		}
	}

	sortRounds(result)
	return result, nil
}

// GetByTimeRange retrieves rounds whose exit falls within [start, end] (inclusive).
func (s *MatchedRoundStore) GetByTimeRange(_ context.Context, entityID string, start, end int64) ([]*domain.MatchedRound, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MatchedRound
	for _, r := range s.data {
		if r.EntityID == entityID && r.ExitTimestamp >= start && r.ExitTimestamp <= end {
			roundCopy := *r
			result = append(result, &roundCopy)
		}
	}

	sortRounds(result)
	return result, nil
}

// sortRounds orders by (exit timestamp ASC, id ASC) for deterministic output.
func sortRounds(rounds []*domain.MatchedRound) {
	sort.Slice(rounds, func(i, j int) bool {
		if rounds[i].ExitTimestamp != rounds[j].ExitTimestamp {
			return rounds[i].ExitTimestamp < rounds[j].ExitTimestamp
		}
		return rounds[i].ID < rounds[j].ID
	})
}

// Verify interface compliance at compile time.
var _ storage.MatchedRoundStore = (*MatchedRoundStore)(nil)
