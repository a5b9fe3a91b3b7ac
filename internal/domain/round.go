package domain

// MatchedRound is a paired entry/exit producing a realized return.
// Corresponds to matched_rounds table in PostgreSQL.
// Created only by the FIFO matcher; immutable once created.
type MatchedRound struct {
	ID                 string  // PRIMARY KEY, deterministic hash of (entry, exit)
	EntityID           string  // FK to tracked_entities
	CounterpartyToken  string  // token the round was traded against
	EntryObservationID string  // consumed BUY observation
	ExitObservationID  string  // SELL observation that closed the round
	EntryValue         float64 // amount * price at entry
	ExitValue          float64 // amount * price at exit
	RoiPercent         float64 // (exit - entry) / entry * 100
	HoldDurationMs     int64   // exit timestamp - entry timestamp
	ExitTimestamp      int64   // Unix timestamp of the exit (ms), used for windowing
	IsWin              bool    // roi_percent >= win threshold
	CreatedAt          int64   // record creation timestamp (ms)
}
