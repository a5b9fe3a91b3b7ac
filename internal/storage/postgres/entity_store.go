package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"signal-tracker/internal/domain"
	"signal-tracker/internal/storage"
)

// EntityStore implements storage.EntityStore using PostgreSQL.
type EntityStore struct {
	pool *Pool
}

// NewEntityStore creates a new EntityStore.
func NewEntityStore(pool *Pool) *EntityStore {
	return &EntityStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EntityStore = (*EntityStore)(nil)

// Upsert inserts the entity or refreshes last_observed_at on conflict.
// The unique constraint on (kind, key) makes this safe under concurrent
// callers racing on the same key; no read-then-write is involved.
func (s *EntityStore) Upsert(ctx context.Context, e *domain.TrackedEntity) (*domain.TrackedEntity, error) {
	query := `
		INSERT INTO tracked_entities (
			entity_id, kind, key, discovery_source, status, created_at, last_observed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (kind, key) DO UPDATE
			SET last_observed_at = GREATEST(tracked_entities.last_observed_at, EXCLUDED.last_observed_at)
		RETURNING entity_id, kind, key, discovery_source, status, created_at, last_observed_at
	`

	row := s.pool.QueryRow(ctx, query,
		e.ID,
		string(e.Kind),
		e.Key,
		e.DiscoverySource,
		string(e.Status),
		e.CreatedAt,
		e.LastObservedAt,
	)

	result, err := scanEntityRow(row)
	if err != nil {
		return nil, fmt.Errorf("upsert entity: %w", err)
	}
	return result, nil
}

// GetByID retrieves an entity by its ID. Returns ErrNotFound if not exists.
func (s *EntityStore) GetByID(ctx context.Context, entityID string) (*domain.TrackedEntity, error) {
	query := `
		SELECT entity_id, kind, key, discovery_source, status, created_at, last_observed_at
		FROM tracked_entities
		WHERE entity_id = $1
	`

	row := s.pool.QueryRow(ctx, query, entityID)
	e, err := scanEntityRow(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get entity by id: %w", err)
	}
	return e, nil
}

// GetByKey retrieves an entity by (kind, key). Returns ErrNotFound if not exists.
func (s *EntityStore) GetByKey(ctx context.Context, kind domain.EntityKind, key string) (*domain.TrackedEntity, error) {
	query := `
		SELECT entity_id, kind, key, discovery_source, status, created_at, last_observed_at
		FROM tracked_entities
		WHERE kind = $1 AND key = $2
	`

	row := s.pool.QueryRow(ctx, query, string(kind), key)
	e, err := scanEntityRow(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get entity by key: %w", err)
	}
	return e, nil
}

// GetByStatus retrieves all entities of a kind in the given status.
func (s *EntityStore) GetByStatus(ctx context.Context, kind domain.EntityKind, status domain.EntityStatus) ([]*domain.TrackedEntity, error) {
	query := `
		SELECT entity_id, kind, key, discovery_source, status, created_at, last_observed_at
		FROM tracked_entities
		WHERE kind = $1 AND status = $2
		ORDER BY created_at ASC, entity_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(kind), string(status))
	if err != nil {
		return nil, fmt.Errorf("get entities by status: %w", err)
	}
	defer rows.Close()

	var entities []*domain.TrackedEntity
	for rows.Next() {
		e, err := scanEntityRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity row: %w", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entity rows: %w", err)
	}

	return entities, nil
}

// UpdateStatus transitions an entity with a single atomic write. The WHERE
// clause excludes terminal rows, so frozen entities are never mutated.
func (s *EntityStore) UpdateStatus(ctx context.Context, entityID string, status domain.EntityStatus) error {
	query := `
		UPDATE tracked_entities
		SET status = $2
		WHERE entity_id = $1
		  AND status NOT IN ('PROMOTED', 'REJECTED', 'INACTIVE', 'WIN', 'LOSS')
	`

	tag, err := s.pool.Exec(ctx, query, entityID, string(status))
	if err != nil {
		return fmt.Errorf("update entity status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// StatusCounts returns entity counts per status for a kind.
func (s *EntityStore) StatusCounts(ctx context.Context, kind domain.EntityKind) (map[domain.EntityStatus]int64, error) {
	query := `
		SELECT status, COUNT(*)
		FROM tracked_entities
		WHERE kind = $1
		GROUP BY status
	`

	rows, err := s.pool.Query(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("count entities by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.EntityStatus]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count row: %w", err)
		}
		counts[domain.EntityStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status count rows: %w", err)
	}

	return counts, nil
}

// scanEntityRow scans a single row into a TrackedEntity.
// pgx.Rows satisfies pgx.Row, so this serves both query shapes.
func scanEntityRow(row pgx.Row) (*domain.TrackedEntity, error) {
	var e domain.TrackedEntity
	var kindStr, statusStr string

	err := row.Scan(
		&e.ID,
		&kindStr,
		&e.Key,
		&e.DiscoverySource,
		&statusStr,
		&e.CreatedAt,
		&e.LastObservedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Kind = domain.EntityKind(kindStr)
	e.Status = domain.EntityStatus(statusStr)
	return &e, nil
}
