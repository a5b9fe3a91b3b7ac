package lifecycle

import (
	"fmt"

	"signal-tracker/internal/domain"
)

// formatCandidateMessage builds the human-readable notification for a
// candidate terminal transition. The engine is agnostic to the delivery
// channel; collaborators receive this string as-is.
func formatCandidateMessage(e *domain.TrackedEntity, status domain.EntityStatus, reason string, score float64) string {
	verb := "rejected"
	if status == domain.StatusPromoted {
		verb = "promoted"
	}
	return fmt.Sprintf("Candidate %s %s (score %.0f): %s", shorten(e.Key), verb, score, reason)
}

// FormatSignalMessage builds the notification for a finalized signal.
func FormatSignalMessage(signalID, token string, outcome domain.SignalOutcomeStatus, finalReturn float64, reason string) string {
	return fmt.Sprintf("Signal %s on %s finalized %s (%+.1f%%): %s",
		signalID, shorten(token), outcome, finalReturn, reason)
}

// shorten abbreviates long addresses for readability.
func shorten(key string) string {
	if len(key) <= 12 {
		return key
	}
	return key[:6] + ".." + key[len(key)-4:]
}
