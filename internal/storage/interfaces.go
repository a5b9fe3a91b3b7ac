package storage

import (
	"context"

	"signal-tracker/internal/domain"
)

// EntityStore provides access to tracked_entities storage.
type EntityStore interface {
	// Upsert inserts the entity or, if a row for (kind, key) already exists,
	// refreshes last_observed_at only. Returns the current row either way.
	// Safe under concurrent callers racing on the same key.
	Upsert(ctx context.Context, e *domain.TrackedEntity) (*domain.TrackedEntity, error)

	// GetByID retrieves an entity by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, entityID string) (*domain.TrackedEntity, error)

	// GetByKey retrieves an entity by (kind, key). Returns ErrNotFound if not exists.
	GetByKey(ctx context.Context, kind domain.EntityKind, key string) (*domain.TrackedEntity, error)

	// GetByStatus retrieves all entities of a kind in the given status,
	// ordered by created_at ASC.
	GetByStatus(ctx context.Context, kind domain.EntityKind, status domain.EntityStatus) ([]*domain.TrackedEntity, error)

	// UpdateStatus transitions an entity to a new status. The update is a
	// single atomic write and only applies while the current status is
	// non-terminal. Returns ErrNotFound if no row was updated.
	UpdateStatus(ctx context.Context, entityID string, status domain.EntityStatus) error

	// StatusCounts returns entity counts per status for a kind.
	StatusCounts(ctx context.Context, kind domain.EntityKind) (map[domain.EntityStatus]int64, error)
}

// ObservationStore provides access to observations storage.
type ObservationStore interface {
	// Insert adds a new observation. Returns ErrDuplicateKey if external_ref exists.
	Insert(ctx context.Context, o *domain.Observation) error

	// GetByEntityID retrieves all observations for an entity, ordered by timestamp ASC.
	GetByEntityID(ctx context.Context, entityID string) ([]*domain.Observation, error)

	// GetByTimeRange retrieves observations for an entity within [start, end]
	// (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, entityID string, start, end int64) ([]*domain.Observation, error)

	// GetUnmatchedBuys retrieves unmatched BUY observations for
	// (entity, counterparty token), ordered by timestamp ASC. Correctness of
	// FIFO matching depends only on this sorted read order, not on the order
	// rows were inserted.
	GetUnmatchedBuys(ctx context.Context, entityID, counterpartyToken string) ([]*domain.Observation, error)

	// MarkMatched flags observations as consumed by the matcher.
	MarkMatched(ctx context.Context, observationIDs ...string) error
}

// MatchedRoundStore provides access to matched_rounds storage.
type MatchedRoundStore interface {
	// Insert adds a new round. Returns ErrDuplicateKey if the round exists.
	// Rounds are immutable once created.
	Insert(ctx context.Context, r *domain.MatchedRound) error

	// GetByEntityID retrieves all rounds for an entity, ordered by exit timestamp ASC.
	GetByEntityID(ctx context.Context, entityID string) ([]*domain.MatchedRound, error)

	// GetByTimeRange retrieves rounds whose exit falls within [start, end]
	// (inclusive), ordered by exit timestamp ASC.
	GetByTimeRange(ctx context.Context, entityID string, start, end int64) ([]*domain.MatchedRound, error)
}

// EvaluationStore provides access to evaluation_results storage.
type EvaluationStore interface {
	// Insert appends an evaluation result. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, r *domain.EvaluationResult) error

	// GetByEntityID retrieves the evaluation history for an entity,
	// ordered by timestamp ASC.
	GetByEntityID(ctx context.Context, entityID string) ([]*domain.EvaluationResult, error)
}

// SignalOutcomeStore provides access to signal_outcomes storage.
type SignalOutcomeStore interface {
	// Insert adds a new pending outcome. Returns ErrDuplicateKey if signal_id exists.
	Insert(ctx context.Context, o *domain.SignalOutcome) error

	// GetBySignalID retrieves an outcome. Returns ErrNotFound if not exists.
	GetBySignalID(ctx context.Context, signalID string) (*domain.SignalOutcome, error)

	// SetIntervalReturn writes one of the return_1h/return_4h/return_24h
	// fields. First-writer-wins: a non-null value is never overwritten.
	// Returns nil whether or not the write applied.
	SetIntervalReturn(ctx context.Context, signalID string, interval ReturnInterval, value float64) error

	// UpdateExcursions widens max_return/min_return to include value.
	UpdateExcursions(ctx context.Context, signalID string, value float64) error

	// Finalize sets the final outcome. Applies only while final_outcome is
	// PENDING (single atomic write). Returns ErrNotFound if no row changed.
	Finalize(ctx context.Context, signalID string, outcome domain.SignalOutcomeStatus, finalizedAt int64) error
}

// ReturnInterval names one first-writer-wins return column.
type ReturnInterval string

const (
	Return1h  ReturnInterval = "return_1h"
	Return4h  ReturnInterval = "return_4h"
	Return24h ReturnInterval = "return_24h"
)

// SnapshotStore provides access to price_snapshots storage.
type SnapshotStore interface {
	// Insert adds a snapshot. Returns ErrDuplicateKey if a snapshot for
	// (entity_id, hour_bucket) already exists.
	Insert(ctx context.Context, s *domain.PriceSnapshot) error

	// GetByEntityID retrieves all snapshots for an entity, ordered by hour bucket ASC.
	GetByEntityID(ctx context.Context, entityID string) ([]*domain.PriceSnapshot, error)
}
