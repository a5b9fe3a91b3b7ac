package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"signal-tracker/internal/domain"
	"signal-tracker/internal/idhash"
	"signal-tracker/internal/rollstats"
	"signal-tracker/internal/storage/memory"
)

const dayMs = 24 * 3600_000

type policyFixture struct {
	observations *memory.ObservationStore
	rounds       *memory.MatchedRoundStore
	policy       *CandidatePolicy
	now          int64
}

func newPolicyFixture(t *testing.T) *policyFixture {
	t.Helper()
	f := &policyFixture{
		observations: memory.NewObservationStore(),
		rounds:       memory.NewMatchedRoundStore(),
		now:          100 * dayMs,
	}
	agg := rollstats.New(f.observations, f.rounds).WithClock(func() int64 { return f.now })
	f.policy = NewCandidatePolicy(agg, DefaultCandidateThresholds()).WithClock(func() int64 { return f.now })
	return f
}

func (f *policyFixture) entity() *domain.TrackedEntity {
	return &domain.TrackedEntity{
		ID:             idhash.EntityID(domain.KindCandidate, "wallet-1"),
		Kind:           domain.KindCandidate,
		Key:            "wallet-1",
		Status:         domain.StatusMonitoring,
		CreatedAt:      f.now - 20*dayMs,
		LastObservedAt: f.now - dayMs,
	}
}

// addRound inserts a round plus a matching buy observation so token breadth
// is represented the way the pipeline produces it.
func (f *policyFixture) addRound(t *testing.T, token string, roi float64, isWin bool, profit float64, exitTs int64) {
	t.Helper()
	ctx := context.Background()
	entityID := idhash.EntityID(domain.KindCandidate, "wallet-1")

	ref := fmt.Sprintf("tx-%s-%d", token, exitTs)
	obs := &domain.Observation{
		ID:                idhash.ObservationID(ref),
		EntityID:          entityID,
		Type:              domain.ObservationBuy,
		CounterpartyToken: token,
		Amount:            1,
		Price:             1,
		Timestamp:         exitTs - 1000,
		ExternalRef:       ref,
		Matched:           true,
		CreatedAt:         exitTs,
	}
	if err := f.observations.Insert(ctx, obs); err != nil {
		t.Fatalf("insert observation: %v", err)
	}

	round := &domain.MatchedRound{
		ID:                 idhash.RoundID(ref+"-en", ref+"-ex"),
		EntityID:           entityID,
		CounterpartyToken:  token,
		EntryObservationID: ref + "-en",
		ExitObservationID:  ref + "-ex",
		EntryValue:         100,
		ExitValue:          100 + profit,
		RoiPercent:         roi,
		ExitTimestamp:      exitTs,
		IsWin:              isWin,
		CreatedAt:          exitTs,
	}
	if err := f.rounds.Insert(ctx, round); err != nil {
		t.Fatalf("insert round: %v", err)
	}
}

func TestCandidatePolicy_InsufficientHistoryStaysMonitoring(t *testing.T) {
	f := newPolicyFixture(t)

	// Two perfect rounds: a 100% win rate must not promote before the
	// minimum trade count is reached.
	f.addRound(t, "tok-a", 150, true, 150, f.now-dayMs)
	f.addRound(t, "tok-b", 120, true, 120, f.now-2*dayMs)

	outcome, err := f.policy.Evaluate(context.Background(), f.entity())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if outcome.Transitions() {
		t.Errorf("must not transition with 2 rounds: next=%s", outcome.NextStatus)
	}
	if outcome.Decision != domain.DecisionContinue {
		t.Errorf("decision: got %s, want CONTINUE", outcome.Decision)
	}
	if !strings.Contains(outcome.Reason, "insufficient history") {
		t.Errorf("reason should explain the gate: %q", outcome.Reason)
	}
}

func TestCandidatePolicy_SingleTokenStaysMonitoring(t *testing.T) {
	f := newPolicyFixture(t)

	for i := 0; i < 5; i++ {
		f.addRound(t, "tok-a", 150, true, 150, f.now-int64(i+1)*dayMs)
	}

	outcome, err := f.policy.Evaluate(context.Background(), f.entity())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if outcome.Transitions() {
		t.Error("single-token wallet must not be promoted")
	}
}

func TestCandidatePolicy_Promote(t *testing.T) {
	f := newPolicyFixture(t)

	f.addRound(t, "tok-a", 150, true, 50, f.now-dayMs)
	f.addRound(t, "tok-b", 120, true, 30, f.now-2*dayMs)
	f.addRound(t, "tok-a", -20, false, -20, f.now-3*dayMs)

	outcome, err := f.policy.Evaluate(context.Background(), f.entity())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if outcome.NextStatus != domain.StatusPromoted {
		t.Fatalf("status: got %s, want PROMOTED", outcome.NextStatus)
	}
	if outcome.Decision != domain.DecisionPromote {
		t.Errorf("decision: got %s", outcome.Decision)
	}
	if outcome.Notification == "" {
		t.Error("promotion must carry a notification")
	}
	if outcome.Score <= 0 || outcome.Score > 100 {
		t.Errorf("score out of range: %v", outcome.Score)
	}
}

func TestCandidatePolicy_RejectLowWinRate(t *testing.T) {
	f := newPolicyFixture(t)

	// 1 win out of 16 rounds: 6.25% win rate with enough evidence.
	f.addRound(t, "tok-a", 120, true, 5, f.now-dayMs)
	for i := 0; i < 15; i++ {
		token := fmt.Sprintf("tok-%d", i%3)
		f.addRound(t, token, -10, false, -1, f.now-int64(i+2)*dayMs)
	}

	outcome, err := f.policy.Evaluate(context.Background(), f.entity())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if outcome.NextStatus != domain.StatusRejected {
		t.Fatalf("status: got %s, want REJECTED", outcome.NextStatus)
	}
	if outcome.Decision != domain.DecisionReject {
		t.Errorf("decision: got %s", outcome.Decision)
	}
}

func TestCandidatePolicy_RejectDeepLoss(t *testing.T) {
	f := newPolicyFixture(t)

	// Few rounds, but losses beyond the floor reject immediately.
	f.addRound(t, "tok-a", -10, false, -10, f.now-dayMs)
	f.addRound(t, "tok-b", -10, false, -10, f.now-2*dayMs)
	f.addRound(t, "tok-a", -10, false, -10, f.now-3*dayMs)

	outcome, err := f.policy.Evaluate(context.Background(), f.entity())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if outcome.NextStatus != domain.StatusRejected {
		t.Fatalf("deep loss must reject: got %s", outcome.NextStatus)
	}
}

func TestCandidatePolicy_InactivityWinsOverMetrics(t *testing.T) {
	f := newPolicyFixture(t)

	// Profitable history, but silent past the inactivity horizon.
	f.addRound(t, "tok-a", 150, true, 50, f.now-dayMs)
	f.addRound(t, "tok-b", 120, true, 30, f.now-2*dayMs)
	f.addRound(t, "tok-a", 110, true, 20, f.now-3*dayMs)

	e := f.entity()
	e.LastObservedAt = f.now - 15*dayMs

	outcome, err := f.policy.Evaluate(context.Background(), e)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if outcome.NextStatus != domain.StatusInactive {
		t.Fatalf("status: got %s, want INACTIVE", outcome.NextStatus)
	}
}

func TestCandidatePolicy_MiddlingWalletContinues(t *testing.T) {
	f := newPolicyFixture(t)

	// 25% win rate, mildly negative: neither promotable nor rejectable.
	f.addRound(t, "tok-a", 120, true, 10, f.now-dayMs)
	f.addRound(t, "tok-b", -10, false, -5, f.now-2*dayMs)
	f.addRound(t, "tok-a", -10, false, -5, f.now-3*dayMs)
	f.addRound(t, "tok-b", -10, false, -5, f.now-4*dayMs)

	outcome, err := f.policy.Evaluate(context.Background(), f.entity())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if outcome.Transitions() {
		t.Errorf("middling wallet must keep monitoring: next=%s", outcome.NextStatus)
	}
	if outcome.Decision != domain.DecisionContinue {
		t.Errorf("decision: got %s, want CONTINUE", outcome.Decision)
	}
}
