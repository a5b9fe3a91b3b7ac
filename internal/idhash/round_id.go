package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// RoundID computes a deterministic matched-round id using SHA256.
// Formula: SHA256(entry_observation_id|exit_observation_id)
// A BUY is consumed by exactly one SELL, so the pair is unique.
func RoundID(entryObservationID, exitObservationID string) string {
	data := fmt.Sprintf("%s|%s", entryObservationID, exitObservationID)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
