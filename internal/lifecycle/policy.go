// Package lifecycle drives the periodic state machine that transitions
// tracked entities. The evaluation loop shape is shared by both entity
// flavors; the kind-specific threshold rules live behind the Policy
// interface so signals and candidates are not duplicated implementations.
package lifecycle

import (
	"context"

	"signal-tracker/internal/domain"
)

// Outcome is the result of evaluating one entity in one cycle.
type Outcome struct {
	// NextStatus is non-empty when the entity should transition.
	NextStatus domain.EntityStatus

	// Decision classifies the cycle for the audit trail.
	Decision domain.Decision

	// Score is the diagnostic 0-100 ranking value.
	Score float64

	// Reason is the human-readable rationale persisted with the result.
	Reason string

	// Notification, when non-empty, is the pre-formatted message handed to
	// the registered transition callback after the transition commits.
	Notification string
}

// Transitions reports whether the outcome carries a status change.
func (o *Outcome) Transitions() bool {
	return o != nil && o.NextStatus != ""
}

// Policy supplies the kind-specific threshold rules for one entity flavor.
type Policy interface {
	// Kind identifies the entity flavor this policy evaluates.
	Kind() domain.EntityKind

	// ActiveStatus is the non-terminal status the evaluator scans for.
	ActiveStatus() domain.EntityStatus

	// Evaluate applies the threshold rules to one entity. A nil Outcome
	// with nil error means "skip this entity this cycle" (e.g. upstream
	// data unavailable); the entity is retried on the next cycle.
	Evaluate(ctx context.Context, e *domain.TrackedEntity) (*Outcome, error)
}
