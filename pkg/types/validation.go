package types

import (
	"fmt"
	"strings"
)

// errInvalidAction formats a DreamAction validation failure. Kept local to
// this package (rather than importing internal/apperr) so pkg/types has no
// dependency on the error-kind taxonomy; callers wrap it with
// apperr.Validation at the boundary.
func errInvalidAction(msg string) error {
	return fmt.Errorf("invalid dream action: %s", msg)
}

// summarizeDreamCounters builds the human summary sentence for a completed
// dream session from its non-zero counters, e.g.
// "Reviewed 12 memories: created 2, modified 5, archived 1."
func summarizeDreamCounters(created, modified, archived, deleted, reviewed int) string {
	var parts []string
	if created > 0 {
		parts = append(parts, fmt.Sprintf("created %d", created))
	}
	if modified > 0 {
		parts = append(parts, fmt.Sprintf("modified %d", modified))
	}
	if archived > 0 {
		parts = append(parts, fmt.Sprintf("archived %d", archived))
	}
	if deleted > 0 {
		parts = append(parts, fmt.Sprintf("deleted %d", deleted))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Reviewed %d memories: no changes.", reviewed)
	}
	return fmt.Sprintf("Reviewed %d memories: %s.", reviewed, strings.Join(parts, ", "))
}

// InRange01 reports whether v is within [0,1] inclusive.
func InRange01(v float64) bool {
	return v >= 0 && v <= 1
}
