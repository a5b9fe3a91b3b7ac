// Package dedup provides the bounded recency store that prevents
// double-counting of externally referenced trade events. It is the only
// in-process shared mutable structure in the engine; instances are owned
// and injected, never process-global, so independent engines can coexist.
package dedup

import "context"

// Verdict classifies an event offered to the cache.
type Verdict int

const (
	// Admitted means the reference was unseen and is now recorded.
	Admitted Verdict = iota
	// Duplicate means the reference was already present; the event must be
	// silently absorbed with no further processing.
	Duplicate
	// Immaterial means the event notional fell below the materiality
	// threshold and was discarded before admission.
	Immaterial
)

// Cache is a bounded recency store keyed by external event reference.
type Cache interface {
	// Admit offers an event reference with its trade notional. Membership
	// insertion and the duplicate check are one atomic step.
	Admit(ctx context.Context, externalRef string, notional float64) (Verdict, error)

	// Len reports the current number of tracked references.
	Len(ctx context.Context) (int, error)
}
