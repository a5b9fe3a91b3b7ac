// Package rollstats recomputes windowed performance statistics for tracked
// entities. Metrics are always a pure function of persisted observations and
// matched rounds, never incrementally mutated, so they are safe to regenerate
// after backfill and to compute in parallel for different entities.
package rollstats

import (
	"context"
	"fmt"
	"math"
	"time"

	"signal-tracker/internal/domain"
	"signal-tracker/internal/storage"
)

// Aggregator computes rolling metrics from stored state.
type Aggregator struct {
	observations storage.ObservationStore
	rounds       storage.MatchedRoundStore
	now          func() int64 // ms clock, injectable for tests
}

// New creates an Aggregator.
func New(observations storage.ObservationStore, rounds storage.MatchedRoundStore) *Aggregator {
	return &Aggregator{
		observations: observations,
		rounds:       rounds,
		now:          func() int64 { return time.Now().UnixMilli() },
	}
}

// WithClock overrides the millisecond clock. Returns the aggregator for chaining.
func (a *Aggregator) WithClock(now func() int64) *Aggregator {
	a.now = now
	return a
}

// Compute recomputes metrics for an entity over the trailing window.
// Deterministic: unchanged stored data yields identical output aside
// from ComputedAt.
func (a *Aggregator) Compute(ctx context.Context, entityID string, windowDays int) (*domain.RollingMetrics, error) {
	now := a.now()
	start := now - int64(windowDays)*24*3600_000

	rounds, err := a.rounds.GetByTimeRange(ctx, entityID, start, now)
	if err != nil {
		return nil, fmt.Errorf("load rounds: %w", err)
	}

	observations, err := a.observations.GetByTimeRange(ctx, entityID, start, now)
	if err != nil {
		return nil, fmt.Errorf("load observations: %w", err)
	}

	m := &domain.RollingMetrics{
		EntityID:    entityID,
		WindowDays:  windowDays,
		TotalRounds: len(rounds),
		ComputedAt:  now,
	}

	var roiSum, profitSum float64
	rois := make([]float64, 0, len(rounds))
	for _, r := range rounds {
		if r.IsWin {
			m.Wins++
		} else {
			m.Losses++
		}
		roiSum += r.RoiPercent
		profitSum += r.ExitValue - r.EntryValue
		rois = append(rois, r.RoiPercent)
	}

	if m.TotalRounds > 0 {
		m.WinRate = float64(m.Wins) / float64(m.TotalRounds)
		m.AvgRoi = roiSum / float64(m.TotalRounds)
	}
	m.TotalProfit = profitSum
	m.ConsistencyScore = populationStddev(rois)

	tokens := make(map[string]struct{})
	for _, o := range observations {
		if o.Type == domain.ObservationPriceSnapshot || o.CounterpartyToken == "" {
			continue
		}
		tokens[o.CounterpartyToken] = struct{}{}
	}
	m.UniqueCounterparties = len(tokens)

	return m, nil
}

// populationStddev returns the population standard deviation of values.
// Zero for fewer than two values.
func populationStddev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	var sqDiff float64
	for _, v := range values {
		d := v - mean
		sqDiff += d * d
	}
	return math.Sqrt(sqDiff / float64(n))
}
