package memory

import (
	"context"
	"errors"
	"testing"

	"signal-tracker/internal/domain"
	"signal-tracker/internal/storage"
)

func TestSnapshotStore_OnePerHourBucket(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	first := &domain.PriceSnapshot{EntityID: "e1", HourBucket: 3600_000, Price: 1.0, TimestampMs: 3600_100}
	if err := store.Insert(ctx, first); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	sameBucket := &domain.PriceSnapshot{EntityID: "e1", HourBucket: 3600_000, Price: 2.0, TimestampMs: 3601_000}
	if err := store.Insert(ctx, sameBucket); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("same bucket: got %v, want ErrDuplicateKey", err)
	}

	// Same bucket for a different entity is fine.
	otherEntity := &domain.PriceSnapshot{EntityID: "e2", HourBucket: 3600_000, Price: 3.0, TimestampMs: 3600_100}
	if err := store.Insert(ctx, otherEntity); err != nil {
		t.Errorf("other entity, same bucket: %v", err)
	}
}

func TestSnapshotStore_GetByEntityIDOrdered(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	for _, s := range []*domain.PriceSnapshot{
		{EntityID: "e1", HourBucket: 7200_000, Price: 2.0},
		{EntityID: "e1", HourBucket: 3600_000, Price: 1.0},
		{EntityID: "e2", HourBucket: 1000, Price: 9.0},
	} {
		if err := store.Insert(ctx, s); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.GetByEntityID(ctx, "e1")
	if err != nil {
		t.Fatalf("GetByEntityID failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("snapshots: got %d, want 2", len(got))
	}
	if got[0].HourBucket != 3600_000 || got[1].HourBucket != 7200_000 {
		t.Error("snapshots not ordered by hour bucket")
	}
}
