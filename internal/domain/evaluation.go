package domain

// Decision is the outcome of one evaluation cycle for an entity.
type Decision string

const (
	DecisionContinue Decision = "CONTINUE"
	DecisionPromote  Decision = "PROMOTE"
	DecisionReject   Decision = "REJECT"
)

// EvaluationResult records one evaluation of an entity.
// Corresponds to evaluation_results table in PostgreSQL. Append-only audit
// trail: terminal decisions stay explainable even when derived from noisy
// or partial upstream data.
type EvaluationResult struct {
	ID        string   // PRIMARY KEY, uuid
	EntityID  string   // FK to tracked_entities
	Timestamp int64    // Unix timestamp in milliseconds
	Score     float64  // diagnostic 0-100, ranking only
	Decision  Decision // CONTINUE | PROMOTE | REJECT
	Reason    string   // human-readable rationale
}
