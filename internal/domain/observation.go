package domain

// ObservationType classifies an ingested event.
type ObservationType string

const (
	ObservationBuy           ObservationType = "BUY"
	ObservationSell          ObservationType = "SELL"
	ObservationPriceSnapshot ObservationType = "PRICE_SNAPSHOT"
)

// Observation is a single timestamped trade or price event for an entity.
// Corresponds to observations table in PostgreSQL.
// Invariant: external_ref is globally unique; re-ingesting it is a no-op.
type Observation struct {
	ID                string          // PRIMARY KEY, deterministic hash of external_ref
	EntityID          string          // FK to tracked_entities
	Type              ObservationType // BUY | SELL | PRICE_SNAPSHOT
	CounterpartyToken string          // token the entity traded against
	Amount            float64         // traded token amount
	Price             float64         // execution price
	Timestamp         int64           // Unix timestamp in milliseconds
	ExternalRef       string          // provider transaction/event reference
	Matched           bool            // consumed by the FIFO matcher
	CreatedAt         int64           // record creation timestamp (ms)
}

// Notional returns the traded value of the observation.
func (o *Observation) Notional() float64 {
	return o.Amount * o.Price
}
