// Package registry provides get-or-create semantics for tracked entities.
// One row per (kind, key) is guaranteed by the storage layer's
// unique-constraint-backed upsert, not by application locking.
package registry

import (
	"context"
	"fmt"
	"time"

	"signal-tracker/internal/domain"
	"signal-tracker/internal/idhash"
	"signal-tracker/internal/storage"
)

// Registry resolves entity keys to tracked entity rows.
type Registry struct {
	entities storage.EntityStore
	now      func() int64 // ms clock, injectable for tests
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the millisecond clock.
func WithClock(now func() int64) Option {
	return func(r *Registry) { r.now = now }
}

// New creates a Registry backed by the given entity store.
func New(entities storage.EntityStore, opts ...Option) *Registry {
	r := &Registry{
		entities: entities,
		now:      func() int64 { return time.Now().UnixMilli() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetOrCreate returns the entity for (kind, key), creating it with the
// kind's initial status on first sight. An existing row comes back
// unchanged except for last_observed_at. Safe under concurrent callers
// racing on the same key.
func (r *Registry) GetOrCreate(ctx context.Context, key string, kind domain.EntityKind, discoverySource string) (*domain.TrackedEntity, error) {
	if key == "" {
		return nil, storage.ErrInvalidInput
	}

	now := r.now()
	e := &domain.TrackedEntity{
		ID:              idhash.EntityID(kind, key),
		Kind:            kind,
		Key:             key,
		DiscoverySource: discoverySource,
		Status:          kind.InitialStatus(),
		CreatedAt:       now,
		LastObservedAt:  now,
	}

	result, err := r.entities.Upsert(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("get or create entity %s/%s: %w", kind, key, err)
	}
	return result, nil
}
