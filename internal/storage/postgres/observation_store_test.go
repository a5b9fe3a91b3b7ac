package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-tracker/internal/domain"
	"signal-tracker/internal/idhash"
	"signal-tracker/internal/storage"
)

func testObservation(entityID, token string, typ domain.ObservationType, ts int64) *domain.Observation {
	ref := fmt.Sprintf("tx-%s-%s-%d", typ, token, ts)
	return &domain.Observation{
		ID:                idhash.ObservationID(ref),
		EntityID:          entityID,
		Type:              typ,
		CounterpartyToken: token,
		Amount:            10,
		Price:             1.5,
		Timestamp:         ts,
		ExternalRef:       ref,
		CreatedAt:         ts,
	}
}

func seedTestEntity(t *testing.T, pool *Pool, key string) string {
	t.Helper()
	store := NewEntityStore(pool)
	e, err := store.Upsert(context.Background(), testEntity(key))
	require.NoError(t, err)
	return e.ID
}

func TestObservationStore_InsertAndDuplicateRef(t *testing.T) {
	pool := setupTestDB(t)

	store := NewObservationStore(pool)
	ctx := context.Background()
	entityID := seedTestEntity(t, pool, "wallet-1")

	o := testObservation(entityID, "tok", domain.ObservationBuy, 1000)
	require.NoError(t, store.Insert(ctx, o))

	err := store.Insert(ctx, o)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestObservationStore_GetUnmatchedBuys(t *testing.T) {
	pool := setupTestDB(t)

	store := NewObservationStore(pool)
	ctx := context.Background()
	entityID := seedTestEntity(t, pool, "wallet-1")

	// Insertion order reversed relative to timestamps; sells and other
	// tokens excluded.
	for _, o := range []*domain.Observation{
		testObservation(entityID, "tok", domain.ObservationBuy, 3000),
		testObservation(entityID, "tok", domain.ObservationBuy, 1000),
		testObservation(entityID, "other", domain.ObservationBuy, 500),
		testObservation(entityID, "tok", domain.ObservationSell, 400),
	} {
		require.NoError(t, store.Insert(ctx, o))
	}

	buys, err := store.GetUnmatchedBuys(ctx, entityID, "tok")
	require.NoError(t, err)
	require.Len(t, buys, 2)
	assert.Equal(t, int64(1000), buys[0].Timestamp, "earliest buy first")
	assert.Equal(t, int64(3000), buys[1].Timestamp)
}

func TestObservationStore_MarkMatched(t *testing.T) {
	pool := setupTestDB(t)

	store := NewObservationStore(pool)
	ctx := context.Background()
	entityID := seedTestEntity(t, pool, "wallet-1")

	buy := testObservation(entityID, "tok", domain.ObservationBuy, 1000)
	sell := testObservation(entityID, "tok", domain.ObservationSell, 2000)
	require.NoError(t, store.Insert(ctx, buy))
	require.NoError(t, store.Insert(ctx, sell))

	require.NoError(t, store.MarkMatched(ctx, buy.ID, sell.ID))

	buys, err := store.GetUnmatchedBuys(ctx, entityID, "tok")
	require.NoError(t, err)
	assert.Empty(t, buys)

	all, err := store.GetByEntityID(ctx, entityID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, o := range all {
		assert.True(t, o.Matched)
	}
}

func TestObservationStore_GetByTimeRange(t *testing.T) {
	pool := setupTestDB(t)

	store := NewObservationStore(pool)
	ctx := context.Background()
	entityID := seedTestEntity(t, pool, "wallet-1")

	for _, ts := range []int64{1000, 2000, 3000} {
		require.NoError(t, store.Insert(ctx, testObservation(entityID, "tok", domain.ObservationBuy, ts)))
	}

	got, err := store.GetByTimeRange(ctx, entityID, 1000, 2000)
	require.NoError(t, err)
	assert.Len(t, got, 2, "range is inclusive on both ends")
}
