package domain

// EntityKind distinguishes the two lifecycle flavors tracked by the engine.
type EntityKind string

const (
	KindSignal    EntityKind = "SIGNAL"
	KindCandidate EntityKind = "CANDIDATE"
)

// EntityStatus is the lifecycle state of a tracked entity.
type EntityStatus string

const (
	// Candidate states
	StatusMonitoring EntityStatus = "MONITORING"
	StatusPromoted   EntityStatus = "PROMOTED"
	StatusRejected   EntityStatus = "REJECTED"
	StatusInactive   EntityStatus = "INACTIVE"

	// Signal states
	StatusPending EntityStatus = "PENDING"
	StatusWin     EntityStatus = "WIN"
	StatusLoss    EntityStatus = "LOSS"
)

// IsTerminal reports whether no further transition is permitted from s.
// Terminal entities are frozen: new observations only touch last_observed_at.
func (s EntityStatus) IsTerminal() bool {
	switch s {
	case StatusPromoted, StatusRejected, StatusInactive, StatusWin, StatusLoss:
		return true
	}
	return false
}

// InitialStatus returns the status assigned on first discovery of a kind.
func (k EntityKind) InitialStatus() EntityStatus {
	if k == EntityKind(KindSignal) {
		return StatusPending
	}
	return StatusMonitoring
}

// TrackedEntity represents a tracked signal or candidate wallet.
// Corresponds to tracked_entities table in PostgreSQL.
// Uniqueness invariant: one row per (kind, key), enforced by the database.
type TrackedEntity struct {
	ID              string       // PRIMARY KEY, deterministic hash of (kind, key)
	Kind            EntityKind   // SIGNAL | CANDIDATE
	Key             string       // wallet address or signal id
	DiscoverySource string       // who reported the entity first
	Status          EntityStatus //
	CreatedAt       int64        // Unix timestamp in milliseconds
	LastObservedAt  int64        // last time any observation arrived (ms)
}
