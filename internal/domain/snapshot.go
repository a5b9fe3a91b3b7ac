package domain

// PriceQuote is a collaborator price lookup result.
// A nil *PriceQuote means "unavailable this cycle", never an error.
type PriceQuote struct {
	Price     float64
	MarketCap float64
}

// PriceSnapshot is one sampled price point for a pending signal.
// Corresponds to price_snapshots table in ClickHouse.
// At most one snapshot per (entity_id, hour_bucket) to bound storage growth.
type PriceSnapshot struct {
	EntityID    string
	HourBucket  int64 // Unix timestamp truncated to the natural hour (ms)
	Price       float64
	MarketCap   float64
	TimestampMs int64 // actual sample time (ms)
}

// HourBucketMs truncates a millisecond timestamp to its natural hour.
func HourBucketMs(ts int64) int64 {
	const hourMs = 3600_000
	return ts - ts%hourMs
}
