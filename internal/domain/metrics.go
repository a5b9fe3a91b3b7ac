package domain

// RollingMetrics is a windowed performance summary for an entity.
// Always a pure recomputation from observations and matched rounds,
// never incrementally mutated, so it is safe to regenerate after backfill.
// Not persisted; computed on demand.
type RollingMetrics struct {
	EntityID             string
	WindowDays           int
	TotalRounds          int
	Wins                 int
	Losses               int
	WinRate              float64 // wins / total_rounds, 0 when no rounds
	AvgRoi               float64 // mean roi_percent across rounds
	TotalProfit          float64 // sum(exit_value - entry_value)
	UniqueCounterparties int     // distinct tokens observed in the window
	ConsistencyScore     float64 // population stddev of roi_percent (lower = steadier)
	ComputedAt           int64   // Unix timestamp in milliseconds
}
