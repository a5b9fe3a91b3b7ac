// Package tracker follows emitted trade signals until they resolve to a
// WIN or LOSS against fixed stop-loss, take-profit, and expiry thresholds.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"signal-tracker/internal/domain"
	"signal-tracker/internal/lifecycle"
	"signal-tracker/internal/observability"
	"signal-tracker/internal/registry"
	"signal-tracker/internal/storage"
)

// PriceSource resolves a token address to its current market quote.
// A nil quote with nil error means the price is unavailable this cycle;
// the signal is retried on the next cycle.
type PriceSource interface {
	Lookup(ctx context.Context, tokenAddress string) (*domain.PriceQuote, error)
}

// Thresholds are the fixed resolution boundaries for a tracked signal.
type Thresholds struct {
	StopLossPercent   float64       // finalize LOSS at or below
	TakeProfitPercent float64       // finalize WIN at or above
	MaxTracking       time.Duration // expiry: finalize LOSS when exceeded
}

// DefaultThresholds returns the production resolution boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		StopLossPercent:   -40,
		TakeProfitPercent: 100,
		MaxTracking:       48 * time.Hour,
	}
}

// Tracker is the signal-flavor lifecycle policy. Each evaluation cycle
// samples the current price, records the snapshot and excursions, captures
// interval returns as their thresholds pass, and finalizes the signal when
// a resolution boundary is hit.
type Tracker struct {
	registry  *registry.Registry
	outcomes  storage.SignalOutcomeStore
	snapshots storage.SnapshotStore
	prices    PriceSource

	thresholds Thresholds
	now        func() int64
	metrics    *observability.Metrics
	logger     *zap.Logger
}

var _ lifecycle.Policy = (*Tracker)(nil)

// Options configures a Tracker.
type Options struct {
	Registry   *registry.Registry
	Outcomes   storage.SignalOutcomeStore
	Snapshots  storage.SnapshotStore
	Prices     PriceSource
	Thresholds Thresholds             // zero value selects DefaultThresholds
	Metrics    *observability.Metrics // optional
	Logger     *zap.Logger            // optional
}

// New creates a Tracker.
func New(opts Options) *Tracker {
	thresholds := opts.Thresholds
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		registry:   opts.Registry,
		outcomes:   opts.Outcomes,
		snapshots:  opts.Snapshots,
		prices:     opts.Prices,
		thresholds: thresholds,
		now:        func() int64 { return time.Now().UnixMilli() },
		metrics:    opts.Metrics,
		logger:     logger,
	}
}

// WithClock overrides the millisecond clock. Returns the tracker for chaining.
func (t *Tracker) WithClock(now func() int64) *Tracker {
	t.now = now
	return t
}

// Kind implements lifecycle.Policy.
func (t *Tracker) Kind() domain.EntityKind { return domain.KindSignal }

// ActiveStatus implements lifecycle.Policy.
func (t *Tracker) ActiveStatus() domain.EntityStatus { return domain.StatusPending }

// Register begins tracking a newly emitted signal. Registering the same
// signal id twice returns the existing entity without touching the
// recorded entry price.
func (t *Tracker) Register(ctx context.Context, signalID, tokenAddress string, entryPrice float64, source string) (*domain.TrackedEntity, error) {
	if signalID == "" || tokenAddress == "" || entryPrice <= 0 {
		return nil, storage.ErrInvalidInput
	}

	e, err := t.registry.GetOrCreate(ctx, signalID, domain.KindSignal, source)
	if err != nil {
		return nil, err
	}

	outcome := &domain.SignalOutcome{
		SignalID:     signalID,
		TokenAddress: tokenAddress,
		EntryPrice:   entryPrice,
		EntryTime:    t.now(),
		FinalOutcome: domain.OutcomePending,
		CreatedAt:    t.now(),
	}
	if err := t.outcomes.Insert(ctx, outcome); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return e, nil
		}
		return nil, fmt.Errorf("register signal %s: %w", signalID, err)
	}

	if t.metrics != nil {
		t.metrics.SignalsRegistered.Inc()
	}
	t.logger.Info("signal registered",
		zap.String("signal_id", signalID),
		zap.String("token", tokenAddress),
		zap.Float64("entry_price", entryPrice),
	)
	return e, nil
}

// Evaluate implements lifecycle.Policy. Non-finalizing cycles return a nil
// Outcome: the per-cycle audit trail for signals is the snapshot series,
// not evaluation_results.
func (t *Tracker) Evaluate(ctx context.Context, e *domain.TrackedEntity) (*lifecycle.Outcome, error) {
	outcome, err := t.outcomes.GetBySignalID(ctx, e.Key)
	if err != nil {
		return nil, fmt.Errorf("load outcome for signal %s: %w", e.Key, err)
	}

	quote, err := t.prices.Lookup(ctx, outcome.TokenAddress)
	if err != nil {
		if t.metrics != nil {
			t.metrics.PriceLookupErrors.Inc()
		}
		t.logger.Warn("price lookup failed",
			zap.String("signal_id", e.Key),
			zap.String("token", outcome.TokenAddress),
			zap.Error(err),
		)
		return nil, nil
	}
	if quote == nil {
		return nil, nil
	}

	now := t.now()
	currentReturn := (quote.Price - outcome.EntryPrice) / outcome.EntryPrice * 100

	t.recordSnapshot(ctx, e.ID, quote, now)

	if err := t.outcomes.UpdateExcursions(ctx, e.Key, currentReturn); err != nil {
		return nil, fmt.Errorf("update excursions for signal %s: %w", e.Key, err)
	}

	if err := t.captureIntervalReturns(ctx, outcome, currentReturn, now); err != nil {
		return nil, err
	}

	return t.maybeFinalize(ctx, e, outcome, currentReturn, now)
}

// recordSnapshot stores at most one sample per natural hour. A losing race
// on the hour bucket is not an error.
func (t *Tracker) recordSnapshot(ctx context.Context, entityID string, quote *domain.PriceQuote, now int64) {
	snap := &domain.PriceSnapshot{
		EntityID:    entityID,
		HourBucket:  domain.HourBucketMs(now),
		Price:       quote.Price,
		MarketCap:   quote.MarketCap,
		TimestampMs: now,
	}
	if err := t.snapshots.Insert(ctx, snap); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		t.logger.Warn("snapshot insert failed",
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}

// captureIntervalReturns writes each interval return the first time its
// threshold has passed. The store's first-writer-wins guard makes the
// local nil checks an optimization, not the correctness mechanism.
func (t *Tracker) captureIntervalReturns(ctx context.Context, outcome *domain.SignalOutcome, currentReturn float64, now int64) error {
	elapsed := now - outcome.EntryTime

	type window struct {
		interval storage.ReturnInterval
		afterMs  int64
		written  *float64
	}
	windows := []window{
		{storage.Return1h, time.Hour.Milliseconds(), outcome.Return1h},
		{storage.Return4h, (4 * time.Hour).Milliseconds(), outcome.Return4h},
		{storage.Return24h, (24 * time.Hour).Milliseconds(), outcome.Return24h},
	}
	for _, w := range windows {
		if elapsed < w.afterMs || w.written != nil {
			continue
		}
		if err := t.outcomes.SetIntervalReturn(ctx, outcome.SignalID, w.interval, currentReturn); err != nil {
			return fmt.Errorf("set %s for signal %s: %w", w.interval, outcome.SignalID, err)
		}
	}
	return nil
}

// maybeFinalize checks the resolution boundaries in precedence order:
// take-profit, stop-loss, then expiry. Expiry without a prior take-profit
// is a LOSS even when the position is up.
func (t *Tracker) maybeFinalize(ctx context.Context, e *domain.TrackedEntity, outcome *domain.SignalOutcome, currentReturn float64, now int64) (*lifecycle.Outcome, error) {
	var (
		final  domain.SignalOutcomeStatus
		reason string
	)
	switch {
	case currentReturn >= t.thresholds.TakeProfitPercent:
		final = domain.OutcomeWin
		reason = fmt.Sprintf("take-profit hit at %+.1f%% (threshold %+.1f%%)", currentReturn, t.thresholds.TakeProfitPercent)
	case currentReturn <= t.thresholds.StopLossPercent:
		final = domain.OutcomeLoss
		reason = fmt.Sprintf("stop-loss hit at %+.1f%% (threshold %+.1f%%)", currentReturn, t.thresholds.StopLossPercent)
	case now-outcome.EntryTime >= t.thresholds.MaxTracking.Milliseconds():
		final = domain.OutcomeLoss
		reason = fmt.Sprintf("tracking window expired at %+.1f%% without take-profit", currentReturn)
	default:
		return nil, nil
	}

	if err := t.outcomes.Finalize(ctx, e.Key, final, now); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// A concurrent cycle finalized first.
			return nil, nil
		}
		return nil, fmt.Errorf("finalize signal %s: %w", e.Key, err)
	}

	if t.metrics != nil {
		t.metrics.SignalsFinalized.WithLabelValues(string(final)).Inc()
	}

	nextStatus := domain.StatusLoss
	decision := domain.DecisionReject
	if final == domain.OutcomeWin {
		nextStatus = domain.StatusWin
		decision = domain.DecisionPromote
	}

	return &lifecycle.Outcome{
		NextStatus:   nextStatus,
		Decision:     decision,
		Score:        clampScore(50 + currentReturn/4),
		Reason:       reason,
		Notification: lifecycle.FormatSignalMessage(e.Key, outcome.TokenAddress, final, currentReturn, reason),
	}, nil
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
