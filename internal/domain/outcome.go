package domain

// SignalOutcomeStatus is the final classification of a tracked signal.
type SignalOutcomeStatus string

const (
	OutcomePending SignalOutcomeStatus = "PENDING"
	OutcomeWin     SignalOutcomeStatus = "WIN"
	OutcomeLoss    SignalOutcomeStatus = "LOSS"
)

// SignalOutcome tracks the real-world result of an emitted trade signal.
// Corresponds to signal_outcomes table in PostgreSQL.
// Interval returns are each written at most once (first-writer-wins).
type SignalOutcome struct {
	SignalID     string  // PRIMARY KEY, matches tracked_entities.key
	TokenAddress string  // token the signal fired on
	EntryPrice   float64 // price at signal emission
	EntryTime    int64   // Unix timestamp in milliseconds

	Return1h  *float64 // percent change at 1h, nil until the threshold is crossed
	Return4h  *float64 // percent change at 4h
	Return24h *float64 // percent change at 24h

	MaxReturn float64 // best percent change observed so far
	MinReturn float64 // worst percent change observed so far

	FinalOutcome SignalOutcomeStatus // PENDING | WIN | LOSS
	FinalizedAt  *int64              // nil while pending
	CreatedAt    int64               // record creation timestamp (ms)
}
