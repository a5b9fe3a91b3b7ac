package postgres

import (
	"context"
	"fmt"

	"signal-tracker/internal/domain"
	"signal-tracker/internal/storage"
)

// EvaluationStore implements storage.EvaluationStore using PostgreSQL.
type EvaluationStore struct {
	pool *Pool
}

// NewEvaluationStore creates a new EvaluationStore.
func NewEvaluationStore(pool *Pool) *EvaluationStore {
	return &EvaluationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EvaluationStore = (*EvaluationStore)(nil)

// Insert appends an evaluation result. Returns ErrDuplicateKey if the id exists.
func (s *EvaluationStore) Insert(ctx context.Context, r *domain.EvaluationResult) error {
	query := `
		INSERT INTO evaluation_results (
			result_id, entity_id, timestamp, score, decision, reason
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		r.ID,
		r.EntityID,
		r.Timestamp,
		r.Score,
		string(r.Decision),
		r.Reason,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert evaluation result: %w", err)
	}
	return nil
}

// GetByEntityID retrieves the evaluation history for an entity, timestamp ASC.
func (s *EvaluationStore) GetByEntityID(ctx context.Context, entityID string) ([]*domain.EvaluationResult, error) {
	query := `
		SELECT result_id, entity_id, timestamp, score, decision, reason
		FROM evaluation_results
		WHERE entity_id = $1
		ORDER BY timestamp ASC, result_id ASC
	`

	rows, err := s.pool.Query(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("get evaluations by entity id: %w", err)
	}
	defer rows.Close()

	var results []*domain.EvaluationResult
	for rows.Next() {
		var r domain.EvaluationResult
		var decisionStr string

		err := rows.Scan(
			&r.ID,
			&r.EntityID,
			&r.Timestamp,
			&r.Score,
			&decisionStr,
			&r.Reason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan evaluation row: %w", err)
		}

		r.Decision = domain.Decision(decisionStr)
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluation rows: %w", err)
	}

	return results, nil
}
