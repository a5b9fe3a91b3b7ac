package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"signal-tracker/internal/domain"
	"signal-tracker/internal/storage"
)

// MatchedRoundStore implements storage.MatchedRoundStore using PostgreSQL.
type MatchedRoundStore struct {
	pool *Pool
}

// NewMatchedRoundStore creates a new MatchedRoundStore.
func NewMatchedRoundStore(pool *Pool) *MatchedRoundStore {
	return &MatchedRoundStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MatchedRoundStore = (*MatchedRoundStore)(nil)

const roundColumns = `
	round_id, entity_id, counterparty_token, entry_observation_id,
	exit_observation_id, entry_value, exit_value, roi_percent,
	hold_duration_ms, exit_timestamp, is_win, created_at
`

// Insert adds a new round. Returns ErrDuplicateKey if the round exists.
func (s *MatchedRoundStore) Insert(ctx context.Context, r *domain.MatchedRound) error {
	query := `
		INSERT INTO matched_rounds (
			round_id, entity_id, counterparty_token, entry_observation_id,
			exit_observation_id, entry_value, exit_value, roi_percent,
			hold_duration_ms, exit_timestamp, is_win
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		r.ID,
		r.EntityID,
		r.CounterpartyToken,
		r.EntryObservationID,
		r.ExitObservationID,
		r.EntryValue,
		r.ExitValue,
		r.RoiPercent,
		r.HoldDurationMs,
		r.ExitTimestamp,
		r.IsWin,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert matched round: %w", err)
	}
	return nil
}

// GetByEntityID retrieves all rounds for an entity, ordered by exit timestamp ASC.
func (s *MatchedRoundStore) GetByEntityID(ctx context.Context, entityID string) ([]*domain.MatchedRound, error) {
	query := `
		SELECT ` + roundColumns + `
		FROM matched_rounds
		WHERE entity_id = $1
		ORDER BY exit_timestamp ASC, round_id ASC
	`

	rows, err := s.pool.Query(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("get rounds by entity id: %w", err)
	}
	defer rows.Close()

	return scanRounds(rows)
}

// GetByTimeRange retrieves rounds whose exit falls within [start, end] (inclusive).
func (s *MatchedRoundStore) GetByTimeRange(ctx context.Context, entityID string, start, end int64) ([]*domain.MatchedRound, error) {
	query := `
		SELECT ` + roundColumns + `
		FROM matched_rounds
		WHERE entity_id = $1 AND exit_timestamp >= $2 AND exit_timestamp <= $3
		ORDER BY exit_timestamp ASC, round_id ASC
	`

	rows, err := s.pool.Query(ctx, query, entityID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get rounds by time range: %w", err)
	}
	defer rows.Close()

	return scanRounds(rows)
}

// scanRounds scans multiple rows into a slice of MatchedRound.
func scanRounds(rows pgx.Rows) ([]*domain.MatchedRound, error) {
	var rounds []*domain.MatchedRound

	for rows.Next() {
		var r domain.MatchedRound

		err := rows.Scan(
			&r.ID,
			&r.EntityID,
			&r.CounterpartyToken,
			&r.EntryObservationID,
			&r.ExitObservationID,
			&r.EntryValue,
			&r.ExitValue,
			&r.RoiPercent,
			&r.HoldDurationMs,
			&r.ExitTimestamp,
			&r.IsWin,
			&r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan round row: %w", err)
		}

		rounds = append(rounds, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate round rows: %w", err)
	}

	return rounds, nil
}
