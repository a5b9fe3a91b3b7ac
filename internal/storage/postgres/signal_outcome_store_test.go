package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-tracker/internal/domain"
	"signal-tracker/internal/storage"
)

func testOutcome(signalID string) *domain.SignalOutcome {
	return &domain.SignalOutcome{
		SignalID:     signalID,
		TokenAddress: "TokenMint111",
		EntryPrice:   1.25,
		EntryTime:    1700000000000,
		FinalOutcome: domain.OutcomePending,
		CreatedAt:    1700000000000,
	}
}

func TestSignalOutcomeStore_InsertAndGet(t *testing.T) {
	pool := setupTestDB(t)

	store := NewSignalOutcomeStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testOutcome("sig-1")))

	err := store.Insert(ctx, testOutcome("sig-1"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetBySignalID(ctx, "sig-1")
	require.NoError(t, err)
	assert.Equal(t, 1.25, got.EntryPrice)
	assert.Equal(t, domain.OutcomePending, got.FinalOutcome)
	assert.Nil(t, got.Return1h)
	assert.Nil(t, got.FinalizedAt)
}

func TestSignalOutcomeStore_SetIntervalReturnFirstWriterWins(t *testing.T) {
	pool := setupTestDB(t)

	store := NewSignalOutcomeStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testOutcome("sig-1")))

	require.NoError(t, store.SetIntervalReturn(ctx, "sig-1", storage.Return1h, 12.5))
	// Second write is a silent no-op.
	require.NoError(t, store.SetIntervalReturn(ctx, "sig-1", storage.Return1h, 99))

	got, err := store.GetBySignalID(ctx, "sig-1")
	require.NoError(t, err)
	require.NotNil(t, got.Return1h)
	assert.Equal(t, 12.5, *got.Return1h)
	assert.Nil(t, got.Return4h)
	assert.Nil(t, got.Return24h)
}

func TestSignalOutcomeStore_UpdateExcursions(t *testing.T) {
	pool := setupTestDB(t)

	store := NewSignalOutcomeStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testOutcome("sig-1")))

	for _, v := range []float64{10, -20, 5} {
		require.NoError(t, store.UpdateExcursions(ctx, "sig-1", v))
	}

	got, err := store.GetBySignalID(ctx, "sig-1")
	require.NoError(t, err)
	assert.Equal(t, float64(10), got.MaxReturn)
	assert.Equal(t, float64(-20), got.MinReturn)
}

func TestSignalOutcomeStore_FinalizePendingOnly(t *testing.T) {
	pool := setupTestDB(t)

	store := NewSignalOutcomeStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testOutcome("sig-1")))

	require.NoError(t, store.Finalize(ctx, "sig-1", domain.OutcomeWin, 1700000500000))

	// Concurrent cycles lose the race on the PENDING guard.
	err := store.Finalize(ctx, "sig-1", domain.OutcomeLoss, 1700000600000)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := store.GetBySignalID(ctx, "sig-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeWin, got.FinalOutcome)
	require.NotNil(t, got.FinalizedAt)
	assert.Equal(t, int64(1700000500000), *got.FinalizedAt)
}
