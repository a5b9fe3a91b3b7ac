package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"signal-tracker/internal/domain"
	"signal-tracker/internal/storage"
)

// ObservationStore implements storage.ObservationStore using PostgreSQL.
type ObservationStore struct {
	pool *Pool
}

// NewObservationStore creates a new ObservationStore.
func NewObservationStore(pool *Pool) *ObservationStore {
	return &ObservationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ObservationStore = (*ObservationStore)(nil)

const observationColumns = `
	observation_id, entity_id, type, counterparty_token,
	amount, price, timestamp, external_ref, matched, created_at
`

// Insert adds a new observation. Returns ErrDuplicateKey if external_ref exists.
func (s *ObservationStore) Insert(ctx context.Context, o *domain.Observation) error {
	query := `
		INSERT INTO observations (
			observation_id, entity_id, type, counterparty_token,
			amount, price, timestamp, external_ref, matched
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		o.ID,
		o.EntityID,
		string(o.Type),
		o.CounterpartyToken,
		o.Amount,
		o.Price,
		o.Timestamp,
		o.ExternalRef,
		o.Matched,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert observation: %w", err)
	}
	return nil
}

// GetByEntityID retrieves all observations for an entity, ordered by timestamp ASC.
func (s *ObservationStore) GetByEntityID(ctx context.Context, entityID string) ([]*domain.Observation, error) {
	query := `
		SELECT ` + observationColumns + `
		FROM observations
		WHERE entity_id = $1
		ORDER BY timestamp ASC, observation_id ASC
	`

	rows, err := s.pool.Query(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("get observations by entity id: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// GetByTimeRange retrieves observations for an entity within [start, end] (inclusive).
func (s *ObservationStore) GetByTimeRange(ctx context.Context, entityID string, start, end int64) ([]*domain.Observation, error) {
	query := `
		SELECT ` + observationColumns + `
		FROM observations
		WHERE entity_id = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp ASC, observation_id ASC
	`

	rows, err := s.pool.Query(ctx, query, entityID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get observations by time range: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// GetUnmatchedBuys retrieves unmatched BUYs for (entity, token), timestamp ASC.
func (s *ObservationStore) GetUnmatchedBuys(ctx context.Context, entityID, counterpartyToken string) ([]*domain.Observation, error) {
	query := `
		SELECT ` + observationColumns + `
		FROM observations
		WHERE entity_id = $1 AND counterparty_token = $2
		  AND type = 'BUY' AND matched = FALSE
		ORDER BY timestamp ASC, observation_id ASC
	`

	rows, err := s.pool.Query(ctx, query, entityID, counterpartyToken)
	if err != nil {
		return nil, fmt.Errorf("get unmatched buys: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// MarkMatched flags observations as consumed by the matcher.
func (s *ObservationStore) MarkMatched(ctx context.Context, observationIDs ...string) error {
	if len(observationIDs) == 0 {
		return nil
	}

	query := `
		UPDATE observations
		SET matched = TRUE
		WHERE observation_id = ANY($1)
	`

	tag, err := s.pool.Exec(ctx, query, observationIDs)
	if err != nil {
		return fmt.Errorf("mark observations matched: %w", err)
	}
	if tag.RowsAffected() != int64(len(observationIDs)) {
		return storage.ErrNotFound
	}
	return nil
}

// scanObservations scans multiple rows into a slice of Observation.
func scanObservations(rows pgx.Rows) ([]*domain.Observation, error) {
	var observations []*domain.Observation

	for rows.Next() {
		var o domain.Observation
		var typeStr string

		err := rows.Scan(
			&o.ID,
			&o.EntityID,
			&typeStr,
			&o.CounterpartyToken,
			&o.Amount,
			&o.Price,
			&o.Timestamp,
			&o.ExternalRef,
			&o.Matched,
			&o.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan observation row: %w", err)
		}

		o.Type = domain.ObservationType(typeStr)
		observations = append(observations, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observation rows: %w", err)
	}

	return observations, nil
}
