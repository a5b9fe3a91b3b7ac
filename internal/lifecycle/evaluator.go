package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"signal-tracker/internal/domain"
	"signal-tracker/internal/observability"
	"signal-tracker/internal/storage"
)

// NotifyFunc receives the pre-formatted message for a terminal transition.
// Failures are logged and never roll back the persisted transition.
type NotifyFunc func(ctx context.Context, message string) error

// DefaultBatchSize bounds concurrent per-entity evaluations to respect
// upstream rate limits.
const DefaultBatchSize = 8

// DefaultBatchPause separates consecutive batches within one cycle.
const DefaultBatchPause = 250 * time.Millisecond

// Evaluator runs the periodic evaluation cycle for one entity flavor.
// Each entity is an independent unit of work: one entity's failure never
// blocks others in the same cycle.
type Evaluator struct {
	entities storage.EntityStore
	evals    storage.EvaluationStore
	policy   Policy

	notify     NotifyFunc
	batchSize  int
	batchPause time.Duration
	now        func() int64
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// EvaluatorOptions configures an Evaluator.
type EvaluatorOptions struct {
	Entities   storage.EntityStore
	Evals      storage.EvaluationStore
	Policy     Policy
	Notify     NotifyFunc // optional
	BatchSize  int        // <= 0 selects DefaultBatchSize
	BatchPause time.Duration
	Metrics    *observability.Metrics // optional
	Logger     *zap.Logger            // optional
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(opts EvaluatorOptions) *Evaluator {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	batchPause := opts.BatchPause
	if batchPause <= 0 {
		batchPause = DefaultBatchPause
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		entities:   opts.Entities,
		evals:      opts.Evals,
		policy:     opts.Policy,
		notify:     opts.Notify,
		batchSize:  batchSize,
		batchPause: batchPause,
		now:        func() int64 { return time.Now().UnixMilli() },
		metrics:    opts.Metrics,
		logger:     logger,
	}
}

// WithClock overrides the millisecond clock. Returns the evaluator for chaining.
func (ev *Evaluator) WithClock(now func() int64) *Evaluator {
	ev.now = now
	return ev
}

// SetNotify registers the transition callback.
func (ev *Evaluator) SetNotify(fn NotifyFunc) {
	ev.notify = fn
}

// CycleStats summarizes one evaluation cycle.
type CycleStats struct {
	Evaluated   int
	Transitions int
	Skipped     int
	Errors      int
}

// RunCycle evaluates every active entity of the policy's kind in
// bounded-size concurrent batches with a brief pause between batches.
// Re-entrant: a second overlapping cycle only re-reads stored state and
// re-applies idempotent writes.
func (ev *Evaluator) RunCycle(ctx context.Context) (*CycleStats, error) {
	started := time.Now()

	entities, err := ev.entities.GetByStatus(ctx, ev.policy.Kind(), ev.policy.ActiveStatus())
	if err != nil {
		return nil, err
	}

	stats := &CycleStats{}
	for start := 0; start < len(entities); start += ev.batchSize {
		end := start + ev.batchSize
		if end > len(entities) {
			end = len(entities)
		}

		p := pool.New().WithContext(ctx).WithMaxGoroutines(ev.batchSize)
		results := make([]cycleResult, end-start)
		for i, e := range entities[start:end] {
			i, e := i, e
			p.Go(func(ctx context.Context) error {
				results[i] = ev.evaluateOne(ctx, e)
				return nil
			})
		}
		if err := p.Wait(); err != nil {
			// Only context cancellation reaches here; per-entity errors are
			// absorbed into results.
			return stats, err
		}

		for _, r := range results {
			stats.Evaluated++
			switch {
			case r.err != nil:
				stats.Errors++
			case r.skipped:
				stats.Skipped++
			case r.transitioned:
				stats.Transitions++
			}
		}

		if end < len(entities) {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-time.After(ev.batchPause):
			}
		}
	}

	if ev.metrics != nil {
		ev.metrics.EvaluationCycles.WithLabelValues(string(ev.policy.Kind())).Inc()
		ev.metrics.EvaluationDuration.WithLabelValues(string(ev.policy.Kind())).Observe(time.Since(started).Seconds())
		ev.metrics.LastSuccessfulCycle.SetToCurrentTime()
	}

	ev.logger.Info("evaluation cycle complete",
		zap.String("kind", string(ev.policy.Kind())),
		zap.Int("evaluated", stats.Evaluated),
		zap.Int("transitions", stats.Transitions),
		zap.Int("skipped", stats.Skipped),
		zap.Int("errors", stats.Errors),
	)

	return stats, nil
}

type cycleResult struct {
	skipped      bool
	transitioned bool
	err          error
}

// evaluateOne applies the policy to a single entity and persists the result.
// All failures are contained here; the batch continues regardless.
func (ev *Evaluator) evaluateOne(ctx context.Context, e *domain.TrackedEntity) cycleResult {
	outcome, err := ev.policy.Evaluate(ctx, e)
	if err != nil {
		ev.logger.Warn("evaluation failed",
			zap.String("entity_id", e.ID),
			zap.String("key", e.Key),
			zap.Error(err),
		)
		return cycleResult{err: err}
	}
	if outcome == nil {
		return cycleResult{skipped: true}
	}

	result := &domain.EvaluationResult{
		ID:        uuid.NewString(),
		EntityID:  e.ID,
		Timestamp: ev.now(),
		Score:     outcome.Score,
		Decision:  outcome.Decision,
		Reason:    outcome.Reason,
	}
	if err := ev.evals.Insert(ctx, result); err != nil {
		ev.logger.Warn("persist evaluation result failed",
			zap.String("entity_id", e.ID),
			zap.Error(err),
		)
		return cycleResult{err: err}
	}

	if !outcome.Transitions() {
		return cycleResult{}
	}

	// Transition commits first; notification is best-effort after.
	if err := ev.entities.UpdateStatus(ctx, e.ID, outcome.NextStatus); err != nil {
		// A concurrent cycle may have already frozen the entity.
		ev.logger.Warn("status transition failed",
			zap.String("entity_id", e.ID),
			zap.String("next_status", string(outcome.NextStatus)),
			zap.Error(err),
		)
		return cycleResult{err: err}
	}

	if ev.metrics != nil {
		ev.metrics.Transitions.WithLabelValues(string(ev.policy.Kind()), string(outcome.NextStatus)).Inc()
	}

	ev.logger.Info("entity transitioned",
		zap.String("entity_id", e.ID),
		zap.String("key", e.Key),
		zap.String("status", string(outcome.NextStatus)),
		zap.String("reason", outcome.Reason),
	)

	if ev.notify != nil && outcome.Notification != "" {
		if err := ev.notify(ctx, outcome.Notification); err != nil {
			if ev.metrics != nil {
				ev.metrics.NotifyFailures.Inc()
			}
			ev.logger.Warn("transition notification failed",
				zap.String("entity_id", e.ID),
				zap.Error(err),
			)
		}
	}

	return cycleResult{transitioned: true}
}
