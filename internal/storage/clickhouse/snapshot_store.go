package clickhouse

import (
	"context"
	"fmt"

	"signal-tracker/internal/domain"
	"signal-tracker/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using ClickHouse.
// MergeTree does not enforce uniqueness at insert time, so the hourly-bucket
// invariant is checked explicitly before insert.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert adds a snapshot. Returns ErrDuplicateKey if (entity, hour bucket) exists.
func (s *SnapshotStore) Insert(ctx context.Context, snap *domain.PriceSnapshot) error {
	exists, err := s.exists(ctx, snap.EntityID, snap.HourBucket)
	if err != nil {
		return fmt.Errorf("check snapshot exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	query := `
		INSERT INTO price_snapshots (
			entity_id, hour_bucket, price, market_cap, timestamp_ms
		) VALUES (?, ?, ?, ?, ?)
	`

	err = s.conn.Exec(ctx, query,
		snap.EntityID,
		uint64(snap.HourBucket),
		snap.Price,
		snap.MarketCap,
		uint64(snap.TimestampMs),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// GetByEntityID retrieves all snapshots for an entity, ordered by hour bucket ASC.
func (s *SnapshotStore) GetByEntityID(ctx context.Context, entityID string) ([]*domain.PriceSnapshot, error) {
	query := `
		SELECT entity_id, hour_bucket, price, market_cap, timestamp_ms
		FROM price_snapshots
		WHERE entity_id = ?
		ORDER BY hour_bucket ASC
	`

	rows, err := s.conn.Query(ctx, query, entityID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots by entity id: %w", err)
	}
	defer rows.Close()

	var snapshots []*domain.PriceSnapshot
	for rows.Next() {
		var snap domain.PriceSnapshot
		var hourBucket, timestampMs uint64

		err := rows.Scan(
			&snap.EntityID,
			&hourBucket,
			&snap.Price,
			&snap.MarketCap,
			&timestampMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}

		snap.HourBucket = int64(hourBucket)
		snap.TimestampMs = int64(timestampMs)
		snapshots = append(snapshots, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	return snapshots, nil
}

// exists checks whether a snapshot is already recorded for the hour bucket.
func (s *SnapshotStore) exists(ctx context.Context, entityID string, hourBucket int64) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM price_snapshots
		WHERE entity_id = ? AND hour_bucket = ?
	`

	var count uint64
	row := s.conn.QueryRow(ctx, query, entityID, uint64(hourBucket))
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
