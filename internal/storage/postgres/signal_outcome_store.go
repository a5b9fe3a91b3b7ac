package postgres

import (
	"context"
	"fmt"

	"signal-tracker/internal/domain"
	"signal-tracker/internal/storage"
)

// SignalOutcomeStore implements storage.SignalOutcomeStore using PostgreSQL.
// Every mutation is a single atomic UPDATE with its invariant encoded in the
// WHERE clause, so concurrent cycles cannot interleave partial writes.
type SignalOutcomeStore struct {
	pool *Pool
}

// NewSignalOutcomeStore creates a new SignalOutcomeStore.
func NewSignalOutcomeStore(pool *Pool) *SignalOutcomeStore {
	return &SignalOutcomeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SignalOutcomeStore = (*SignalOutcomeStore)(nil)

// Insert adds a new pending outcome. Returns ErrDuplicateKey if signal_id exists.
func (s *SignalOutcomeStore) Insert(ctx context.Context, o *domain.SignalOutcome) error {
	query := `
		INSERT INTO signal_outcomes (
			signal_id, token_address, entry_price, entry_time,
			return_1h, return_4h, return_24h, max_return, min_return,
			final_outcome, finalized_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		o.SignalID,
		o.TokenAddress,
		o.EntryPrice,
		o.EntryTime,
		o.Return1h,
		o.Return4h,
		o.Return24h,
		o.MaxReturn,
		o.MinReturn,
		string(o.FinalOutcome),
		o.FinalizedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert signal outcome: %w", err)
	}
	return nil
}

// GetBySignalID retrieves an outcome. Returns ErrNotFound if not exists.
func (s *SignalOutcomeStore) GetBySignalID(ctx context.Context, signalID string) (*domain.SignalOutcome, error) {
	query := `
		SELECT signal_id, token_address, entry_price, entry_time,
		       return_1h, return_4h, return_24h, max_return, min_return,
		       final_outcome, finalized_at, created_at
		FROM signal_outcomes
		WHERE signal_id = $1
	`

	row := s.pool.QueryRow(ctx, query, signalID)

	var o domain.SignalOutcome
	var outcomeStr string

	err := row.Scan(
		&o.SignalID,
		&o.TokenAddress,
		&o.EntryPrice,
		&o.EntryTime,
		&o.Return1h,
		&o.Return4h,
		&o.Return24h,
		&o.MaxReturn,
		&o.MinReturn,
		&outcomeStr,
		&o.FinalizedAt,
		&o.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get signal outcome: %w", err)
	}

	o.FinalOutcome = domain.SignalOutcomeStatus(outcomeStr)
	return &o, nil
}

// SetIntervalReturn writes one interval return column. The IS NULL guard
// gives first-writer-wins without application-level locking; a skipped
// write is not an error.
func (s *SignalOutcomeStore) SetIntervalReturn(ctx context.Context, signalID string, interval storage.ReturnInterval, value float64) error {
	var column string
	switch interval {
	case storage.Return1h, storage.Return4h, storage.Return24h:
		column = string(interval)
	default:
		return storage.ErrInvalidInput
	}

	query := fmt.Sprintf(`
		UPDATE signal_outcomes
		SET %s = $2
		WHERE signal_id = $1 AND %s IS NULL
	`, column, column)

	if _, err := s.pool.Exec(ctx, query, signalID, value); err != nil {
		return fmt.Errorf("set interval return %s: %w", column, err)
	}
	return nil
}

// UpdateExcursions widens max_return/min_return to include value.
func (s *SignalOutcomeStore) UpdateExcursions(ctx context.Context, signalID string, value float64) error {
	query := `
		UPDATE signal_outcomes
		SET max_return = GREATEST(max_return, $2),
		    min_return = LEAST(min_return, $2)
		WHERE signal_id = $1
	`

	tag, err := s.pool.Exec(ctx, query, signalID, value)
	if err != nil {
		return fmt.Errorf("update excursions: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Finalize sets the final outcome. Applies only while final_outcome is PENDING.
func (s *SignalOutcomeStore) Finalize(ctx context.Context, signalID string, outcome domain.SignalOutcomeStatus, finalizedAt int64) error {
	query := `
		UPDATE signal_outcomes
		SET final_outcome = $2, finalized_at = $3
		WHERE signal_id = $1 AND final_outcome = 'PENDING'
	`

	tag, err := s.pool.Exec(ctx, query, signalID, string(outcome), finalizedAt)
	if err != nil {
		return fmt.Errorf("finalize signal outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
