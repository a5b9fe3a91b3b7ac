package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"signal-tracker/internal/domain"
	"signal-tracker/internal/lifecycle"
	"signal-tracker/internal/registry"
	"signal-tracker/internal/storage"
	"signal-tracker/internal/storage/memory"
)

const hourMs = 3600_000

// fakePrices returns a scripted quote per call.
type fakePrices struct {
	quote *domain.PriceQuote
	err   error
}

func (f *fakePrices) Lookup(context.Context, string) (*domain.PriceQuote, error) {
	return f.quote, f.err
}

type trackerFixture struct {
	outcomes  *memory.SignalOutcomeStore
	snapshots *memory.SnapshotStore
	entities  *memory.EntityStore
	prices    *fakePrices
	tracker   *Tracker
	now       int64
}

func newFixture(t *testing.T) *trackerFixture {
	t.Helper()
	f := &trackerFixture{
		outcomes:  memory.NewSignalOutcomeStore(),
		snapshots: memory.NewSnapshotStore(),
		entities:  memory.NewEntityStore(),
		prices:    &fakePrices{},
		now:       1_700_000_000_000,
	}
	clock := func() int64 { return f.now }
	reg := registry.New(f.entities, registry.WithClock(clock))
	f.tracker = New(Options{
		Registry:  reg,
		Outcomes:  f.outcomes,
		Snapshots: f.snapshots,
		Prices:    f.prices,
	}).WithClock(clock)
	return f
}

func (f *trackerFixture) register(t *testing.T, entryPrice float64) *domain.TrackedEntity {
	t.Helper()
	e, err := f.tracker.Register(context.Background(), "sig-1", "TokenMint1111111111111111111111", entryPrice, "api")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return e
}

func (f *trackerFixture) evaluateAt(t *testing.T, e *domain.TrackedEntity, offset time.Duration, price float64) *lifecycle.Outcome {
	t.Helper()
	f.now = 1_700_000_000_000 + offset.Milliseconds()
	f.prices.quote = &domain.PriceQuote{Price: price, MarketCap: price * 1e6}
	outcome, err := f.tracker.Evaluate(context.Background(), e)
	if err != nil {
		t.Fatalf("Evaluate at %v failed: %v", offset, err)
	}
	return outcome
}

func TestTracker_FullWinLifecycle(t *testing.T) {
	f := newFixture(t)
	e := f.register(t, 1.00)

	if e.Status != domain.StatusPending {
		t.Fatalf("initial status: got %s, want PENDING", e.Status)
	}

	// One hour in, up 10%: interval return captured, still pending.
	outcome := f.evaluateAt(t, e, time.Hour, 1.10)
	if outcome != nil {
		t.Fatalf("no transition expected at +10%%: %+v", outcome)
	}

	stored, err := f.outcomes.GetBySignalID(context.Background(), "sig-1")
	if err != nil {
		t.Fatalf("GetBySignalID failed: %v", err)
	}
	if stored.Return1h == nil || *stored.Return1h != 10 {
		t.Errorf("return_1h: got %v, want 10", stored.Return1h)
	}
	if stored.FinalOutcome != domain.OutcomePending {
		t.Errorf("outcome: got %s, want PENDING", stored.FinalOutcome)
	}
	if stored.MaxReturn != 10 {
		t.Errorf("max return: got %v, want 10", stored.MaxReturn)
	}

	// Five hours in, price doubled and then some: take-profit WIN. The 4h
	// return is captured on the same pass.
	outcome = f.evaluateAt(t, e, 5*time.Hour, 2.05)
	if outcome == nil {
		t.Fatal("expected a finalizing outcome")
	}
	if outcome.NextStatus != domain.StatusWin {
		t.Errorf("status: got %s, want WIN", outcome.NextStatus)
	}
	if outcome.Notification == "" {
		t.Error("finalization must carry a notification")
	}

	stored, _ = f.outcomes.GetBySignalID(context.Background(), "sig-1")
	if stored.FinalOutcome != domain.OutcomeWin {
		t.Errorf("final outcome: got %s, want WIN", stored.FinalOutcome)
	}
	if stored.FinalizedAt == nil {
		t.Error("finalized_at must be set")
	}
	if stored.Return4h == nil || *stored.Return4h != 105 {
		t.Errorf("return_4h: got %v, want 105", stored.Return4h)
	}
	// First-writer-wins: the 1h value from the earlier pass survives.
	if stored.Return1h == nil || *stored.Return1h != 10 {
		t.Errorf("return_1h overwritten: got %v, want 10", stored.Return1h)
	}
	if stored.MaxReturn != 105 {
		t.Errorf("max return: got %v, want 105", stored.MaxReturn)
	}
}

func TestTracker_StopLoss(t *testing.T) {
	f := newFixture(t)
	e := f.register(t, 1.00)

	outcome := f.evaluateAt(t, e, 30*time.Minute, 0.55)
	if outcome == nil {
		t.Fatal("expected stop-loss finalization at -45%")
	}
	if outcome.NextStatus != domain.StatusLoss {
		t.Errorf("status: got %s, want LOSS", outcome.NextStatus)
	}

	stored, _ := f.outcomes.GetBySignalID(context.Background(), "sig-1")
	if stored.FinalOutcome != domain.OutcomeLoss {
		t.Errorf("final outcome: got %s, want LOSS", stored.FinalOutcome)
	}
	if stored.MinReturn != -45 {
		t.Errorf("min return: got %v, want -45", stored.MinReturn)
	}
}

func TestTracker_StopLossBoundary(t *testing.T) {
	f := newFixture(t)
	e := f.register(t, 1.00)

	// -39.9% is inside the band; exactly -40% finalizes.
	if outcome := f.evaluateAt(t, e, time.Hour, 0.601); outcome != nil {
		t.Fatalf("-39.9%% must not finalize: %+v", outcome)
	}
	outcome := f.evaluateAt(t, e, 2*time.Hour, 0.60)
	if outcome == nil || outcome.NextStatus != domain.StatusLoss {
		t.Fatal("-40% must finalize as LOSS")
	}
}

func TestTracker_ExpiryWithoutTakeProfitIsLoss(t *testing.T) {
	f := newFixture(t)
	e := f.register(t, 1.00)

	// Up 50% at the 48h mark: never hit take-profit, so the expiry rules
	// it a LOSS.
	outcome := f.evaluateAt(t, e, 48*time.Hour, 1.50)
	if outcome == nil {
		t.Fatal("expected expiry finalization")
	}
	if outcome.NextStatus != domain.StatusLoss {
		t.Errorf("status: got %s, want LOSS", outcome.NextStatus)
	}

	stored, _ := f.outcomes.GetBySignalID(context.Background(), "sig-1")
	if stored.FinalOutcome != domain.OutcomeLoss {
		t.Errorf("final outcome: got %s, want LOSS", stored.FinalOutcome)
	}
	if stored.Return24h == nil || *stored.Return24h != 50 {
		t.Errorf("return_24h: got %v, want 50", stored.Return24h)
	}
}

func TestTracker_PriceUnavailableSkipsCycle(t *testing.T) {
	f := newFixture(t)
	e := f.register(t, 1.00)

	f.now += hourMs
	f.prices.quote = nil
	outcome, err := f.tracker.Evaluate(context.Background(), e)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if outcome != nil {
		t.Errorf("nil quote must skip the cycle: %+v", outcome)
	}

	stored, _ := f.outcomes.GetBySignalID(context.Background(), "sig-1")
	if stored.Return1h != nil {
		t.Error("no interval return should be written without a price")
	}
}

func TestTracker_LookupErrorSkipsCycle(t *testing.T) {
	f := newFixture(t)
	e := f.register(t, 1.00)

	f.prices.err = errors.New("provider down")
	outcome, err := f.tracker.Evaluate(context.Background(), e)
	if err != nil {
		t.Fatalf("lookup errors must not fail the cycle: %v", err)
	}
	if outcome != nil {
		t.Errorf("expected skip, got %+v", outcome)
	}
}

func TestTracker_OneSnapshotPerHour(t *testing.T) {
	f := newFixture(t)
	e := f.register(t, 1.00)

	// Two samples in the same natural hour, one in the next.
	f.evaluateAt(t, e, 5*time.Minute, 1.01)
	f.evaluateAt(t, e, 25*time.Minute, 1.02)
	f.evaluateAt(t, e, 65*time.Minute, 1.03)

	snaps, err := f.snapshots.GetByEntityID(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("GetByEntityID failed: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("snapshots: got %d, want 2", len(snaps))
	}
	// The first sample of each hour wins.
	if snaps[0].Price != 1.01 {
		t.Errorf("first bucket price: got %v, want 1.01", snaps[0].Price)
	}
}

func TestTracker_RegisterIdempotent(t *testing.T) {
	f := newFixture(t)
	first := f.register(t, 1.00)

	second, err := f.tracker.Register(context.Background(), "sig-1", "TokenMint1111111111111111111111", 9.99, "api")
	if err != nil {
		t.Fatalf("second Register failed: %v", err)
	}
	if second.ID != first.ID {
		t.Error("same signal id must resolve to the same entity")
	}

	stored, _ := f.outcomes.GetBySignalID(context.Background(), "sig-1")
	if stored.EntryPrice != 1.00 {
		t.Errorf("entry price must not change on re-registration: got %v", stored.EntryPrice)
	}
}

func TestTracker_RegisterValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name  string
		id    string
		token string
		price float64
	}{
		{"empty id", "", "tok", 1},
		{"empty token", "sig", "", 1},
		{"zero price", "sig", "tok", 0},
		{"negative price", "sig", "tok", -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.tracker.Register(context.Background(), tc.id, tc.token, tc.price, "api")
			if !errors.Is(err, storage.ErrInvalidInput) {
				t.Errorf("got %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestTracker_ConcurrentFinalizeRace(t *testing.T) {
	f := newFixture(t)
	e := f.register(t, 1.00)

	// First pass finalizes.
	if outcome := f.evaluateAt(t, e, time.Hour, 2.50); outcome == nil {
		t.Fatal("expected finalization")
	}

	// A stale second pass sees PENDING-only finalize reject the write and
	// reports nothing to transition.
	outcome, err := f.tracker.Evaluate(context.Background(), e)
	if err != nil {
		t.Fatalf("stale pass failed: %v", err)
	}
	if outcome != nil {
		t.Errorf("already-finalized signal must be skipped: %+v", outcome)
	}
}
