// Package engine wires the ingestion pipeline: dedup admission, entity
// registration, observation persistence, and FIFO round matching. It is the
// single entry point collaborators use to feed events into the tracker.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"signal-tracker/internal/dedup"
	"signal-tracker/internal/domain"
	"signal-tracker/internal/idhash"
	"signal-tracker/internal/observability"
	"signal-tracker/internal/registry"
	"signal-tracker/internal/rollstats"
	"signal-tracker/internal/storage"
	"signal-tracker/internal/tracker"
)

// RoundMatcher reacts to persisted exit observations.
type RoundMatcher interface {
	OnExit(ctx context.Context, sell *domain.Observation) (*domain.MatchedRound, error)
}

// TradeEvent is one raw event offered by an upstream feed.
type TradeEvent struct {
	WalletAddress     string
	Kind              domain.EntityKind // empty defaults to CANDIDATE
	Type              domain.ObservationType
	CounterpartyToken string
	Amount            float64
	Price             float64
	Timestamp         int64 // Unix ms
	ExternalRef       string
	Source            string
}

// ObserveResult reports what the pipeline did with one event.
type ObserveResult struct {
	Verdict dedup.Verdict
	Entity  *domain.TrackedEntity
	Round   *domain.MatchedRound // non-nil when the event closed a round
}

// Engine is the ingestion and query facade.
type Engine struct {
	cache        dedup.Cache
	registry     *registry.Registry
	observations storage.ObservationStore
	entities     storage.EntityStore
	evals        storage.EvaluationStore
	matcher      RoundMatcher
	aggregator   *rollstats.Aggregator
	tracker      *tracker.Tracker

	now     func() int64
	metrics *observability.Metrics
	logger  *zap.Logger
}

// Options configures an Engine.
type Options struct {
	Cache        dedup.Cache
	Registry     *registry.Registry
	Observations storage.ObservationStore
	Entities     storage.EntityStore
	Evals        storage.EvaluationStore
	Matcher      RoundMatcher
	Aggregator   *rollstats.Aggregator
	Tracker      *tracker.Tracker
	Metrics      *observability.Metrics // optional
	Logger       *zap.Logger            // optional
}

// New creates an Engine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cache:        opts.Cache,
		registry:     opts.Registry,
		observations: opts.Observations,
		entities:     opts.Entities,
		evals:        opts.Evals,
		matcher:      opts.Matcher,
		aggregator:   opts.Aggregator,
		tracker:      opts.Tracker,
		now:          func() int64 { return time.Now().UnixMilli() },
		metrics:      opts.Metrics,
		logger:       logger,
	}
}

// WithClock overrides the millisecond clock. Returns the engine for chaining.
func (e *Engine) WithClock(now func() int64) *Engine {
	e.now = now
	return e
}

// Observe runs one event through the pipeline. Duplicates and immaterial
// events are absorbed without touching storage. Events for entities in a
// terminal status refresh last_observed_at and nothing else.
func (e *Engine) Observe(ctx context.Context, ev TradeEvent) (*ObserveResult, error) {
	if err := validateEvent(ev); err != nil {
		return nil, err
	}

	notional := ev.Amount * ev.Price
	verdict, err := e.cache.Admit(ctx, ev.ExternalRef, notional)
	if err != nil {
		return nil, fmt.Errorf("dedup admit: %w", err)
	}
	switch verdict {
	case dedup.Duplicate:
		if e.metrics != nil {
			e.metrics.ObservationsDuplicate.Inc()
		}
		return &ObserveResult{Verdict: verdict}, nil
	case dedup.Immaterial:
		if e.metrics != nil {
			e.metrics.ObservationsFiltered.Inc()
		}
		return &ObserveResult{Verdict: verdict}, nil
	}

	kind := ev.Kind
	if kind == "" {
		kind = domain.KindCandidate
	}
	entity, err := e.registry.GetOrCreate(ctx, ev.WalletAddress, kind, ev.Source)
	if err != nil {
		e.countIngestError("registry")
		return nil, err
	}

	// Terminal entities are frozen; the upsert above already refreshed
	// last_observed_at.
	if entity.Status.IsTerminal() {
		return &ObserveResult{Verdict: verdict, Entity: entity}, nil
	}

	obs := &domain.Observation{
		ID:                idhash.ObservationID(ev.ExternalRef),
		EntityID:          entity.ID,
		Type:              ev.Type,
		CounterpartyToken: ev.CounterpartyToken,
		Amount:            ev.Amount,
		Price:             ev.Price,
		Timestamp:         ev.Timestamp,
		ExternalRef:       ev.ExternalRef,
		CreatedAt:         e.now(),
	}
	if err := e.observations.Insert(ctx, obs); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			// Database-level backstop for references that aged out of the
			// dedup cache.
			if e.metrics != nil {
				e.metrics.ObservationsDuplicate.Inc()
			}
			return &ObserveResult{Verdict: dedup.Duplicate, Entity: entity}, nil
		}
		e.countIngestError("persist")
		return nil, fmt.Errorf("insert observation: %w", err)
	}

	if e.metrics != nil {
		e.metrics.ObservationsAdmitted.WithLabelValues(string(ev.Type)).Inc()
	}

	result := &ObserveResult{Verdict: verdict, Entity: entity}
	if ev.Type == domain.ObservationSell {
		round, err := e.matcher.OnExit(ctx, obs)
		if err != nil {
			e.countIngestError("match")
			return nil, fmt.Errorf("match exit: %w", err)
		}
		result.Round = round
		if e.metrics != nil {
			if round == nil {
				e.metrics.UnmatchedExits.Inc()
			} else {
				resultLabel := "loss"
				if round.IsWin {
					resultLabel = "win"
				}
				e.metrics.RoundsClosed.WithLabelValues(resultLabel).Inc()
			}
		}
	}
	return result, nil
}

// RecordSignal starts outcome tracking for an emitted trade signal.
func (e *Engine) RecordSignal(ctx context.Context, signalID, tokenAddress string, entryPrice float64, source string) (*domain.TrackedEntity, error) {
	return e.tracker.Register(ctx, signalID, tokenAddress, entryPrice, source)
}

// Stats summarizes tracked state for the API surface.
type Stats struct {
	Candidates map[domain.EntityStatus]int64 `json:"candidates"`
	Signals    map[domain.EntityStatus]int64 `json:"signals"`
	DedupSize  int                           `json:"dedup_size"`
}

// Stats reports per-status entity counts and the dedup cache size.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	candidates, err := e.entities.StatusCounts(ctx, domain.KindCandidate)
	if err != nil {
		return nil, fmt.Errorf("count candidates: %w", err)
	}
	signals, err := e.entities.StatusCounts(ctx, domain.KindSignal)
	if err != nil {
		return nil, fmt.Errorf("count signals: %w", err)
	}
	size, err := e.cache.Len(ctx)
	if err != nil {
		return nil, fmt.Errorf("dedup size: %w", err)
	}
	if e.metrics != nil {
		e.metrics.DedupCacheSize.Set(float64(size))
	}
	return &Stats{Candidates: candidates, Signals: signals, DedupSize: size}, nil
}

// Metrics recomputes rolling metrics for one entity.
func (e *Engine) Metrics(ctx context.Context, entityID string, windowDays int) (*domain.RollingMetrics, error) {
	if _, err := e.entities.GetByID(ctx, entityID); err != nil {
		return nil, err
	}
	return e.aggregator.Compute(ctx, entityID, windowDays)
}

// EvaluationHistory returns the append-only evaluation trail for an entity.
func (e *Engine) EvaluationHistory(ctx context.Context, entityID string) ([]*domain.EvaluationResult, error) {
	if _, err := e.entities.GetByID(ctx, entityID); err != nil {
		return nil, err
	}
	return e.evals.GetByEntityID(ctx, entityID)
}

func (e *Engine) countIngestError(stage string) {
	if e.metrics != nil {
		e.metrics.IngestErrors.WithLabelValues(stage).Inc()
	}
}

func validateEvent(ev TradeEvent) error {
	switch {
	case ev.WalletAddress == "",
		ev.ExternalRef == "",
		ev.Timestamp <= 0,
		ev.Amount < 0,
		ev.Price < 0:
		return storage.ErrInvalidInput
	}
	switch ev.Type {
	case domain.ObservationBuy, domain.ObservationSell, domain.ObservationPriceSnapshot:
		return nil
	}
	return storage.ErrInvalidInput
}
