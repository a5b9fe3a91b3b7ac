package memory

import (
	"context"
	"sync"

	"signal-tracker/internal/domain"
	"signal-tracker/internal/storage"
)

// SignalOutcomeStore is an in-memory implementation of storage.SignalOutcomeStore.
type SignalOutcomeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SignalOutcome // keyed by signal id
}

// NewSignalOutcomeStore creates a new in-memory signal outcome store.
func NewSignalOutcomeStore() *SignalOutcomeStore {
	return &SignalOutcomeStore{
		data: make(map[string]*domain.SignalOutcome),
	}
}

// Insert adds a new pending outcome. Returns ErrDuplicateKey if signal_id exists.
func (s *SignalOutcomeStore) Insert(_ context.Context, o *domain.SignalOutcome) error {
	if o == nil || o.SignalID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[o.SignalID]; exists {
		return storage.ErrDuplicateKey
	}

	outcomeCopy := copyOutcome(o)
	s.data[o.SignalID] = outcomeCopy
	return nil
}

// GetBySignalID retrieves an outcome. Returns ErrNotFound if not exists.
func (s *SignalOutcomeStore) GetBySignalID(_ context.Context, signalID string) (*domain.SignalOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.data[signalID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyOutcome(o), nil
}

// SetIntervalReturn writes one interval return field, first-writer-wins.
func (s *SignalOutcomeStore) SetIntervalReturn(_ context.Context, signalID string, interval storage.ReturnInterval, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.data[signalID]
	if !ok {
		return storage.ErrNotFound
	}

	v := value
	switch interval {
	case storage.Return1h:
		if o.Return1h == nil {
			o.Return1h = &v
		}
	case storage.Return4h:
		if o.Return4h == nil {
			o.Return4h = &v
		}
	case storage.Return24h:
		if o.Return24h == nil {
			o.Return24h = &v
		}
	default:
		return storage.ErrInvalidInput
	}
	return nil
}

// UpdateExcursions widens max_return/min_return to include value.
func (s *SignalOutcomeStore) UpdateExcursions(_ context.Context, signalID string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.data[signalID]
	if !ok {
		return storage.ErrNotFound
	}

	if value > o.MaxReturn {
		o.MaxReturn = value
	}
	if value < o.MinReturn {
		o.MinReturn = value
	}
	return nil
}

// Finalize sets the final outcome. Applies only while PENDING.
func (s *SignalOutcomeStore) Finalize(_ context.Context, signalID string, outcome domain.SignalOutcomeStatus, finalizedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.data[signalID]
	if !ok || o.FinalOutcome != domain.OutcomePending {
		return storage.ErrNotFound
	}

	o.FinalOutcome = outcome
	ts := finalizedAt
	o.FinalizedAt = &ts
	return nil
}

// copyOutcome returns a deep copy so callers cannot mutate stored state.
func copyOutcome(o *domain.SignalOutcome) *domain.SignalOutcome {
	outcomeCopy := *o
	if o.Return1h != nil {
		v := *o.Return1h
		outcomeCopy.Return1h = &v
	}
	if o.Return4h != nil {
		v := *o.Return4h
		outcomeCopy.Return4h = &v
	}
	if o.Return24h != nil {
		v := *o.Return24h
		outcomeCopy.Return24h = &v
	}
	if o.FinalizedAt != nil {
		v := *o.FinalizedAt
		outcomeCopy.FinalizedAt = &v
	}
	return &outcomeCopy
}

// Verify interface compliance at compile time.
var _ storage.SignalOutcomeStore = (*SignalOutcomeStore)(nil)
