package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"signal-tracker/internal/domain"
)

// EntityID computes a deterministic entity id using SHA256.
// Formula: SHA256(kind|key)
// Returns hex-encoded hash (64 characters).
func EntityID(kind domain.EntityKind, key string) string {
	data := fmt.Sprintf("%s|%s", string(kind), key)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ObservationID computes a deterministic observation id from its external
// reference. The reference is globally unique, so the id is too.
func ObservationID(externalRef string) string {
	hash := sha256.Sum256([]byte(externalRef))
	return hex.EncodeToString(hash[:])
}
