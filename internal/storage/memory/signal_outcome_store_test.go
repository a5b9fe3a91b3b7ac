package memory

import (
	"context"
	"errors"
	"testing"

	"signal-tracker/internal/domain"
	"signal-tracker/internal/storage"
)

func makeOutcome(signalID string) *domain.SignalOutcome {
	return &domain.SignalOutcome{
		SignalID:     signalID,
		TokenAddress: "tok",
		EntryPrice:   1.0,
		EntryTime:    1000,
		FinalOutcome: domain.OutcomePending,
		CreatedAt:    1000,
	}
}

func TestSignalOutcomeStore_InsertAndGet(t *testing.T) {
	store := NewSignalOutcomeStore()
	ctx := context.Background()

	if err := store.Insert(ctx, makeOutcome("sig-1")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, makeOutcome("sig-1")); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("duplicate insert: got %v, want ErrDuplicateKey", err)
	}

	got, err := store.GetBySignalID(ctx, "sig-1")
	if err != nil {
		t.Fatalf("GetBySignalID failed: %v", err)
	}
	if got.FinalOutcome != domain.OutcomePending {
		t.Errorf("outcome: got %s, want PENDING", got.FinalOutcome)
	}
}

func TestSignalOutcomeStore_SetIntervalReturnFirstWriterWins(t *testing.T) {
	store := NewSignalOutcomeStore()
	ctx := context.Background()

	if err := store.Insert(ctx, makeOutcome("sig-1")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := store.SetIntervalReturn(ctx, "sig-1", storage.Return1h, 10); err != nil {
		t.Fatalf("first SetIntervalReturn failed: %v", err)
	}
	// The second write must be a silent no-op.
	if err := store.SetIntervalReturn(ctx, "sig-1", storage.Return1h, 99); err != nil {
		t.Fatalf("second SetIntervalReturn failed: %v", err)
	}

	got, _ := store.GetBySignalID(ctx, "sig-1")
	if got.Return1h == nil || *got.Return1h != 10 {
		t.Errorf("return_1h: got %v, want 10", got.Return1h)
	}
	if got.Return4h != nil {
		t.Error("return_4h should stay nil")
	}
}

func TestSignalOutcomeStore_UpdateExcursions(t *testing.T) {
	store := NewSignalOutcomeStore()
	ctx := context.Background()

	if err := store.Insert(ctx, makeOutcome("sig-1")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	for _, v := range []float64{10, -20, 5, 30, -5} {
		if err := store.UpdateExcursions(ctx, "sig-1", v); err != nil {
			t.Fatalf("UpdateExcursions(%v) failed: %v", v, err)
		}
	}

	got, _ := store.GetBySignalID(ctx, "sig-1")
	if got.MaxReturn != 30 {
		t.Errorf("max return: got %v, want 30", got.MaxReturn)
	}
	if got.MinReturn != -20 {
		t.Errorf("min return: got %v, want -20", got.MinReturn)
	}
}

func TestSignalOutcomeStore_FinalizeOnlyOnce(t *testing.T) {
	store := NewSignalOutcomeStore()
	ctx := context.Background()

	if err := store.Insert(ctx, makeOutcome("sig-1")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := store.Finalize(ctx, "sig-1", domain.OutcomeWin, 9000); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if err := store.Finalize(ctx, "sig-1", domain.OutcomeLoss, 9500); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second Finalize: got %v, want ErrNotFound", err)
	}

	got, _ := store.GetBySignalID(ctx, "sig-1")
	if got.FinalOutcome != domain.OutcomeWin {
		t.Errorf("outcome: got %s, want WIN", got.FinalOutcome)
	}
	if got.FinalizedAt == nil || *got.FinalizedAt != 9000 {
		t.Errorf("finalized_at: got %v, want 9000", got.FinalizedAt)
	}
}

func TestSignalOutcomeStore_ReturnsCopies(t *testing.T) {
	store := NewSignalOutcomeStore()
	ctx := context.Background()

	if err := store.Insert(ctx, makeOutcome("sig-1")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.SetIntervalReturn(ctx, "sig-1", storage.Return1h, 10); err != nil {
		t.Fatalf("SetIntervalReturn failed: %v", err)
	}

	got, _ := store.GetBySignalID(ctx, "sig-1")
	*got.Return1h = 999
	got.MaxReturn = 999

	again, _ := store.GetBySignalID(ctx, "sig-1")
	if *again.Return1h != 10 || again.MaxReturn != 0 {
		t.Error("mutating a returned outcome leaked into the store")
	}
}
