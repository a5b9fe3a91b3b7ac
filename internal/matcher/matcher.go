// Package matcher pairs BUY and SELL observations into realized-return
// rounds. One BUY is consumed in full by exactly one SELL; partial exits
// are a known simplification and are not modeled.
package matcher

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"signal-tracker/internal/domain"
	"signal-tracker/internal/idhash"
	"signal-tracker/internal/storage"
)

// DefaultWinThresholdPercent is the roi_percent at or above which a round
// counts as a win.
const DefaultWinThresholdPercent = 100.0

// Matcher performs FIFO entry/exit pairing per (entity, counterparty token).
type Matcher struct {
	observations storage.ObservationStore
	rounds       storage.MatchedRoundStore
	winThreshold float64
	logger       *zap.Logger
}

// New creates a Matcher. winThreshold <= 0 selects the default.
func New(observations storage.ObservationStore, rounds storage.MatchedRoundStore, winThreshold float64, logger *zap.Logger) *Matcher {
	if winThreshold <= 0 {
		winThreshold = DefaultWinThresholdPercent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{
		observations: observations,
		rounds:       rounds,
		winThreshold: winThreshold,
		logger:       logger,
	}
}

// OnExit reacts to a persisted SELL observation. It re-reads unmatched BUYs
// sorted by timestamp, so result correctness does not depend on the arrival
// order of events. A SELL with no corresponding BUY stays persisted as
// unmatched; that is informational, never an error.
func (m *Matcher) OnExit(ctx context.Context, sell *domain.Observation) (*domain.MatchedRound, error) {
	if sell == nil || sell.Type != domain.ObservationSell {
		return nil, storage.ErrInvalidInput
	}

	buys, err := m.observations.GetUnmatchedBuys(ctx, sell.EntityID, sell.CounterpartyToken)
	if err != nil {
		return nil, fmt.Errorf("load unmatched buys: %w", err)
	}

	if len(buys) == 0 {
		m.logger.Debug("unmatched exit",
			zap.String("entity_id", sell.EntityID),
			zap.String("token", sell.CounterpartyToken),
			zap.String("external_ref", sell.ExternalRef),
		)
		return nil, nil
	}

	// Earliest BUY first.
	entry := buys[0]
	round := buildRound(entry, sell, m.winThreshold)

	if err := m.rounds.Insert(ctx, round); err != nil {
		return nil, fmt.Errorf("insert matched round: %w", err)
	}

	if err := m.observations.MarkMatched(ctx, entry.ID, sell.ID); err != nil {
		return nil, fmt.Errorf("mark observations matched: %w", err)
	}

	m.logger.Debug("matched round",
		zap.String("entity_id", sell.EntityID),
		zap.String("token", sell.CounterpartyToken),
		zap.Float64("roi_percent", round.RoiPercent),
		zap.Bool("is_win", round.IsWin),
	)

	return round, nil
}

// buildRound computes the realized-return record for an entry/exit pair.
func buildRound(entry, exit *domain.Observation, winThreshold float64) *domain.MatchedRound {
	entryValue := entry.Notional()
	exitValue := exit.Notional()

	var roi float64
	if entryValue != 0 {
		roi = (exitValue - entryValue) / entryValue * 100
	}

	return &domain.MatchedRound{
		ID:                 idhash.RoundID(entry.ID, exit.ID),
		EntityID:           entry.EntityID,
		CounterpartyToken:  entry.CounterpartyToken,
		EntryObservationID: entry.ID,
		ExitObservationID:  exit.ID,
		EntryValue:         entryValue,
		ExitValue:          exitValue,
		RoiPercent:         roi,
		HoldDurationMs:     exit.Timestamp - entry.Timestamp,
		ExitTimestamp:      exit.Timestamp,
		IsWin:              roi >= winThreshold,
		CreatedAt:          time.Now().UnixMilli(),
	}
}
