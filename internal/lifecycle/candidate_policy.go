package lifecycle

import (
	"context"
	"fmt"
	"math"
	"time"

	"signal-tracker/internal/domain"
	"signal-tracker/internal/rollstats"
)

// CandidateThresholds holds the promotion/rejection rules for candidate
// wallets.
type CandidateThresholds struct {
	WindowDays             int     // rolling metrics window
	MinTradesForEvaluation int     // rounds required before any verdict
	MinUniqueTokens        int     // distinct tokens required before any verdict
	PromoteWinRate         float64 // winRate >= this to promote
	PromoteMinProfit       float64 // totalProfit >= this to promote
	RejectWinRate          float64 // winRate < this rejects once enough rounds exist
	RejectMinRounds        int     // rounds required for the win-rate rejection
	RejectMaxLoss          float64 // totalProfit <= this rejects regardless of rounds
	InactivityDays         int     // no observation for this long marks INACTIVE
}

// DefaultCandidateThresholds returns the production defaults.
func DefaultCandidateThresholds() CandidateThresholds {
	return CandidateThresholds{
		WindowDays:             30,
		MinTradesForEvaluation: 3,
		MinUniqueTokens:        2,
		PromoteWinRate:         0.35,
		PromoteMinProfit:       1,
		RejectWinRate:          0.15,
		RejectMinRounds:        15,
		RejectMaxLoss:          -25,
		InactivityDays:         14,
	}
}

// CandidatePolicy evaluates candidate wallets: MONITORING transitions to
// PROMOTED, REJECTED, or INACTIVE, all terminal.
type CandidatePolicy struct {
	aggregator *rollstats.Aggregator
	thresholds CandidateThresholds
	now        func() int64
}

// NewCandidatePolicy creates a CandidatePolicy.
func NewCandidatePolicy(aggregator *rollstats.Aggregator, thresholds CandidateThresholds) *CandidatePolicy {
	return &CandidatePolicy{
		aggregator: aggregator,
		thresholds: thresholds,
		now:        func() int64 { return time.Now().UnixMilli() },
	}
}

// WithClock overrides the millisecond clock. Returns the policy for chaining.
func (p *CandidatePolicy) WithClock(now func() int64) *CandidatePolicy {
	p.now = now
	return p
}

// Kind identifies the candidate flavor.
func (p *CandidatePolicy) Kind() domain.EntityKind { return domain.KindCandidate }

// ActiveStatus is the status the evaluator scans for.
func (p *CandidatePolicy) ActiveStatus() domain.EntityStatus { return domain.StatusMonitoring }

// Evaluate applies the candidate threshold table to one wallet.
func (p *CandidatePolicy) Evaluate(ctx context.Context, e *domain.TrackedEntity) (*Outcome, error) {
	now := p.now()

	// Inactivity is checked every cycle, independent of trade count.
	inactivityMs := int64(p.thresholds.InactivityDays) * 24 * 3600_000
	if now-e.LastObservedAt >= inactivityMs {
		return &Outcome{
			NextStatus: domain.StatusInactive,
			Decision:   domain.DecisionReject,
			Reason:     fmt.Sprintf("no observations in %dd; marked inactive", p.thresholds.InactivityDays),
		}, nil
	}

	m, err := p.aggregator.Compute(ctx, e.ID, p.thresholds.WindowDays)
	if err != nil {
		return nil, fmt.Errorf("compute metrics for %s: %w", e.Key, err)
	}

	score := diagnosticScore(m)

	// Not enough evidence yet: keep monitoring.
	if m.TotalRounds < p.thresholds.MinTradesForEvaluation || m.UniqueCounterparties < p.thresholds.MinUniqueTokens {
		return &Outcome{
			Decision: domain.DecisionContinue,
			Score:    score,
			Reason: fmt.Sprintf("insufficient history: %d rounds (need %d), %d tokens (need %d)",
				m.TotalRounds, p.thresholds.MinTradesForEvaluation,
				m.UniqueCounterparties, p.thresholds.MinUniqueTokens),
		}, nil
	}

	if m.WinRate >= p.thresholds.PromoteWinRate && m.TotalProfit >= p.thresholds.PromoteMinProfit {
		reason := fmt.Sprintf("win rate %.0f%% over %d rounds, profit %.2f",
			m.WinRate*100, m.TotalRounds, m.TotalProfit)
		return &Outcome{
			NextStatus:   domain.StatusPromoted,
			Decision:     domain.DecisionPromote,
			Score:        score,
			Reason:       reason,
			Notification: formatCandidateMessage(e, domain.StatusPromoted, reason, score),
		}, nil
	}

	lowWinRate := m.WinRate < p.thresholds.RejectWinRate && m.TotalRounds >= p.thresholds.RejectMinRounds
	deepLoss := m.TotalProfit <= p.thresholds.RejectMaxLoss
	if lowWinRate || deepLoss {
		reason := fmt.Sprintf("win rate %.0f%% over %d rounds, profit %.2f",
			m.WinRate*100, m.TotalRounds, m.TotalProfit)
		return &Outcome{
			NextStatus:   domain.StatusRejected,
			Decision:     domain.DecisionReject,
			Score:        score,
			Reason:       reason,
			Notification: formatCandidateMessage(e, domain.StatusRejected, reason, score),
		}, nil
	}

	return &Outcome{
		Decision: domain.DecisionContinue,
		Score:    score,
		Reason: fmt.Sprintf("within thresholds: win rate %.0f%%, profit %.2f",
			m.WinRate*100, m.TotalProfit),
	}, nil
}

// diagnosticScore ranks candidates 0-100 for reporting. It never gates the
// promote/reject decision.
// Weighted sum: winRate x40, profit capped at 20, token breadth capped at 20,
// steadiness up to 20.
func diagnosticScore(m *domain.RollingMetrics) float64 {
	score := m.WinRate * 40
	score += math.Min(20, m.TotalProfit/10*20)
	score += math.Min(20, float64(m.UniqueCounterparties)*4)
	score += math.Max(0, 20-m.ConsistencyScore/10)

	return math.Max(0, math.Min(100, score))
}

// Verify interface compliance at compile time.
var _ Policy = (*CandidatePolicy)(nil)
